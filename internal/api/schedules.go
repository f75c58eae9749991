package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-scheduler/internal/automation"
)

const (
	msgScheduled       = "Task scheduled successfully!"
	msgPastDue         = "Schedule time must be in the future"
	msgInvalidDueTime  = "Invalid schedule time format. Use YYYY-MM-DDTHH:MM"
	msgScheduleFailure = "failed to store schedule"
)

// scheduleResponse is returned by a successful POST /schedule.
type scheduleResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

// messageResponse is a plain success body.
type messageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// handleCreateSchedule stores a command for later execution.
func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	req, cmd, ok := decodeCommand(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.ScheduleTime) == "" {
		writeBadRequest(w, msgMissingFields)
		return
	}

	id, err := s.engine.SubmitLaterString(r.Context(), cmd, req.ScheduleTime)
	switch {
	case err == nil:
	case errors.Is(err, automation.ErrInvalidDueTime):
		writeBadRequest(w, msgInvalidDueTime)
		return
	case errors.Is(err, automation.ErrRejectedPastDue):
		writeBadRequest(w, msgPastDue)
		return
	default:
		s.logger.Error("storing schedule failed", "device_id", cmd.DeviceID, "error", err)
		writeInternalError(w, msgScheduleFailure)
		return
	}

	writeJSON(w, http.StatusOK, scheduleResponse{
		Status:  statusSuccess,
		Message: msgScheduled,
		ID:      id,
	})
}

// handleListSchedules returns the pending entries in execution order.
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	pending, err := s.engine.ListPending(r.Context())
	if err != nil {
		s.logger.Error("listing schedules failed", "error", err)
		writeInternalError(w, "failed to list schedules")
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

// handleCancelSchedule deletes an entry. Unknown IDs succeed.
func (s *Server) handleCancelSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeNotFound(w, "schedule not found")
		return
	}

	if err := s.engine.Cancel(r.Context(), id); err != nil {
		s.logger.Error("cancelling schedule failed", "schedule_id", id, "error", err)
		writeInternalError(w, "failed to cancel schedule")
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Status:  statusSuccess,
		Message: fmt.Sprintf("Task %d deleted.", id),
	})
}
