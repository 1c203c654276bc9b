package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/propflow/etl-api/internal/models"
	"github.com/propflow/etl-api/internal/pipeline"
	"github.com/propflow/etl-api/internal/scheduler"
	"github.com/propflow/etl-api/internal/store"
)

type JobHandler struct {
	jobs   store.JobStore
	runs   store.RunStore
	orch   *pipeline.Orchestrator
	sched  *scheduler.Scheduler
	logger zerolog.Logger
}

func NewJobHandler(jobs store.JobStore, runs store.RunStore, orch *pipeline.Orchestrator, sched *scheduler.Scheduler, logger zerolog.Logger) *JobHandler {
	return &JobHandler{
		jobs:   jobs,
		runs:   runs,
		orch:   orch,
		sched:  sched,
		logger: logger.With().Str("handler", "job").Logger(),
	}
}

type jobPayload struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	SourceID    string   `json:"source_id"`
	TargetID    string   `json:"target_id"`
	RuleIDs     []string `json:"rule_ids"`
	Enabled     *bool    `json:"enabled"`
	Schedule    string   `json:"schedule"`
}

func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload jobPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		http.Error(w, "Job name is required", http.StatusBadRequest)
		return
	}
	if payload.SourceID == "" || payload.TargetID == "" {
		http.Error(w, "source_id and target_id are required", http.StatusBadRequest)
		return
	}

	enabled := true
	if payload.Enabled != nil {
		enabled = *payload.Enabled
	}
	job := h.jobs.Create(models.Job{
		Name:        payload.Name,
		Description: payload.Description,
		SourceID:    payload.SourceID,
		TargetID:    payload.TargetID,
		RuleIDs:     payload.RuleIDs,
		Enabled:     enabled,
		Schedule:    payload.Schedule,
	})

	if job.Schedule != "" {
		if err := h.sched.ScheduleJob(job.ID, job.Schedule); err == nil {
			job, _ = h.jobs.Update(job.ID, func(j *models.Job) { j.Status = models.JobStatusScheduled })
		}
	}
	writeJSON(w, http.StatusCreated, job)
}

func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.jobs.List())
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.GetByID(mux.Vars(r)["jobID"])
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *JobHandler) Update(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobID"]
	var payload struct {
		Name        *string   `json:"name"`
		Description *string   `json:"description"`
		SourceID    *string   `json:"source_id"`
		TargetID    *string   `json:"target_id"`
		RuleIDs     *[]string `json:"rule_ids"`
		Enabled     *bool     `json:"enabled"`
		Schedule    *string   `json:"schedule"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	updated, err := h.jobs.Update(jobID, func(j *models.Job) {
		if payload.Name != nil {
			j.Name = *payload.Name
		}
		if payload.Description != nil {
			j.Description = *payload.Description
		}
		if payload.SourceID != nil {
			j.SourceID = *payload.SourceID
		}
		if payload.TargetID != nil {
			j.TargetID = *payload.TargetID
		}
		if payload.RuleIDs != nil {
			j.RuleIDs = *payload.RuleIDs
		}
		if payload.Enabled != nil {
			j.Enabled = *payload.Enabled
		}
		if payload.Schedule != nil {
			j.Schedule = *payload.Schedule
		}
	})
	if err != nil {
		storeError(w, err)
		return
	}

	if payload.Schedule != nil {
		if *payload.Schedule == "" {
			h.sched.UnscheduleJob(jobID)
		} else if err := h.sched.ScheduleJob(jobID, *payload.Schedule); err == nil && !updated.Status.IsTerminal() {
			updated, _ = h.jobs.Update(jobID, func(j *models.Job) { j.Status = models.JobStatusScheduled })
		}
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *JobHandler) Delete(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobID"]
	if h.orch.IsRunning(jobID) {
		http.Error(w, "job has a run in flight", http.StatusConflict)
		return
	}
	if !h.jobs.Delete(jobID) {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	h.sched.UnscheduleJob(jobID)
	w.WriteHeader(http.StatusNoContent)
}

// Run triggers a manual run. The run executes asynchronously; a job that is
// already running answers 409 instead of queueing a second run.
func (h *JobHandler) Run(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobID"]
	job, err := h.jobs.GetByID(jobID)
	if err != nil {
		storeError(w, err)
		return
	}
	if h.orch.IsRunning(jobID) {
		http.Error(w, "job is already running", http.StatusConflict)
		return
	}

	go func() {
		if _, _, err := h.orch.RunJob(context.Background(), jobID, true); err != nil {
			h.logger.Error().Err(err).Str("job_id", jobID).Msg("manual run failed to start")
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"job_id": job.ID, "status": "accepted"})
}

// Cancel flags the in-flight run; the pipeline stops at the next stage
// boundary.
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobID"]
	if !h.orch.Cancel(jobID) {
		http.Error(w, "job has no run in flight", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID, "status": "cancelling"})
}

func (h *JobHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobID"]
	if _, err := h.jobs.GetByID(jobID); err != nil {
		storeError(w, err)
		return
	}
	limit := queryInt(r, "limit", 20)
	writeJSON(w, http.StatusOK, h.runs.ListByJob(jobID, limit))
}

func (h *JobHandler) ListAllRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	writeJSON(w, http.StatusOK, h.runs.List(limit))
}

func (h *JobHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.GetByID(mux.Vars(r)["runID"])
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// SetSchedule replaces the job's schedule expression. An unparsable
// expression is stored but stays inert, and the response carries the
// diagnostic.
func (h *JobHandler) SetSchedule(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobID"]
	var payload struct {
		Schedule string `json:"schedule"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	job, err := h.jobs.Update(jobID, func(j *models.Job) {
		j.Schedule = payload.Schedule
	})
	if err != nil {
		storeError(w, err)
		return
	}

	if payload.Schedule == "" {
		h.sched.UnscheduleJob(jobID)
		writeJSON(w, http.StatusOK, job)
		return
	}

	if err := h.sched.ScheduleJob(jobID, payload.Schedule); err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"job":     job,
			"warning": err.Error(),
		})
		return
	}
	if !job.Status.IsTerminal() && job.Status != models.JobStatusRunning {
		job, _ = h.jobs.Update(jobID, func(j *models.Job) { j.Status = models.JobStatusScheduled })
	}
	writeJSON(w, http.StatusOK, job)
}
