package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/nerrad567/gray-logic-scheduler/internal/audit"
)

// AuditLister is the read side of the audit repository.
type AuditLister interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(q url.Values, key string) (int, bool) {
	v := q.Get(key)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	return n, err == nil && n >= 0
}

// handleListAuditLogs serves GET /audit, newest first. Filters: action,
// entity_type, entity_id. Paging: limit (default 50, max 200) and offset.
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeNotFound(w, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	limit, okLimit := queryInt(q, "limit")
	offset, okOffset := queryInt(q, "offset")
	if !okLimit || !okOffset {
		writeBadRequest(w, "limit and offset must be non-negative integers")
		return
	}

	result, err := s.audit.List(r.Context(), audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		s.logger.Error("listing audit logs", "error", err)
		writeInternalError(w, "failed to list audit logs")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
