package api

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/nerrad567/gray-logic-scheduler/internal/automation"
	"github.com/nerrad567/gray-logic-scheduler/internal/command"
)

// Messages shared by /control and /schedule.
const (
	msgRequestMustBeJSON = "Request must be JSON"
	msgMissingFields     = "Missing required fields"
)

// commandRequest is the body of POST /control and POST /schedule.
type commandRequest struct {
	DeviceID     string          `json:"device_id"`
	Action       string          `json:"action"`
	Value        json.RawMessage `json:"value,omitempty"`
	ScheduleTime string          `json:"schedule_time,omitempty"`
}

// controlResponse is returned by a successful POST /control.
type controlResponse struct {
	Status      string                 `json:"status"`
	Message     string                 `json:"message"`
	DeviceState *automation.DeviceView `json:"device_state,omitempty"`
}

// isJSON reports whether the request declares a JSON body.
func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// decodeCommand reads a commandRequest and converts it to a Command.
// It writes the 400 response itself and returns false on failure.
func decodeCommand(w http.ResponseWriter, r *http.Request) (commandRequest, command.Command, bool) {
	if !isJSON(r) {
		writeBadRequest(w, msgRequestMustBeJSON)
		return commandRequest{}, command.Command{}, false
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, msgRequestMustBeJSON)
		return commandRequest{}, command.Command{}, false
	}
	if strings.TrimSpace(req.DeviceID) == "" || strings.TrimSpace(req.Action) == "" {
		writeBadRequest(w, msgMissingFields)
		return commandRequest{}, command.Command{}, false
	}

	value, err := command.DecodeValue(req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return commandRequest{}, command.Command{}, false
	}

	return req, command.Command{DeviceID: req.DeviceID, Action: req.Action, Value: value}, true
}

// handleListDevices returns every device keyed by ID.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.ListDevices(r.Context()))
}

// handleControl executes a command immediately.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	_, cmd, ok := decodeCommand(w, r)
	if !ok {
		return
	}

	res := s.engine.SubmitNow(r.Context(), cmd)
	if !res.OK {
		code := ErrCodeValidation
		if errors.Is(res.Err, command.ErrDeviceNotFound) {
			code = ErrCodeNotFound
		}
		writeError(w, http.StatusBadRequest, code, res.Message)
		return
	}

	writeJSON(w, http.StatusOK, controlResponse{
		Status:  statusSuccess,
		Message: res.Message,
		DeviceState: &automation.DeviceView{
			Name:        res.Device.Name,
			Status:      res.Device.Status,
			Temperature: res.Device.Temperature,
		},
	})
}
