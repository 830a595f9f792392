package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/nerrad567/power-analytics/internal/audit"
)

// AuditLister is the read side of the audit trail.
type AuditLister interface {
	List(ctx context.Context, f audit.Filter) (*audit.ListResult, error)
}

// handleListAudit returns a page of audit entries, newest first.
//
// Query parameters:
//   - action: created, updated or deleted
//   - reading_id: only entries for this reading
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "audit log not available")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{Action: q.Get("action")}
	if filter.Action != "" && !audit.ValidAction(filter.Action) {
		writeBadRequest(w, fmt.Sprintf("invalid action: %q", filter.Action))
		return
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"limit", &filter.Limit},
		{"offset", &filter.Offset},
	}
	for _, p := range ints {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeBadRequest(w, fmt.Sprintf("invalid %s: %q", p.name, v))
			return
		}
		*p.dst = n
	}
	if v := q.Get("reading_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeBadRequest(w, fmt.Sprintf("invalid reading_id: %q", v))
			return
		}
		filter.ReadingID = id
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.storageError(w, r, "list audit entries", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
