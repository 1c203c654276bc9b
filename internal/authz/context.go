// Package authz carries the authenticated operator identity on the request
// context.
package authz

import (
	"context"
	"net/http"
)

type contextKey string

const operatorKey contextKey = "operator_email"

// WithOperator stores the authenticated operator's email on the context.
func WithOperator(ctx context.Context, email string) context.Context {
	if email == "" {
		return ctx
	}
	return context.WithValue(ctx, operatorKey, email)
}

func OperatorFromRequest(r *http.Request) (string, bool) {
	email, ok := r.Context().Value(operatorKey).(string)
	if !ok || email == "" {
		return "", false
	}
	return email, true
}
