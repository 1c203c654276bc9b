package models

// Record is a single extracted row/document flowing through a pipeline.
// Field names come from the source connector and are preserved through
// transformation until load.
type Record map[string]interface{}

// Clone returns a shallow copy of the record. Values are not copied;
// transformers that replace a value must set a new one rather than
// mutating in place.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
