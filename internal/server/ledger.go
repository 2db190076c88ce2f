package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/roadan/incubator-amaterasu/internal/httputil"
	"github.com/roadan/incubator-amaterasu/internal/repository"
	"github.com/roadan/incubator-amaterasu/internal/sseutil"
)

const (
	defaultListLimit = 50
	keepaliveEvery   = 30 * time.Second
)

func (s *HttpServer) handleListActions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.ActionFilter{Limit: defaultListLimit}

	if jobID := q.Get("job_id"); jobID != "" {
		filter.JobID = &jobID
	}
	if v := q.Get("status"); v != "" {
		st, err := repository.ParseStatus(v)
		if err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "%v", err)
			return
		}
		filter.Status = &st
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid %s %q", name, v)
			return
		}
		*dst = n
	}

	recs, err := s.coordinator.ListActions(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list actions", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list actions")
		return
	}
	if recs == nil {
		recs = []*repository.ActionRecord{}
	}
	_ = httputil.WriteJSON(w, http.StatusOK, recs)
}

// handleStatusStream sends ledger status changes as "status" events until
// the client goes away. job_id narrows the stream to one job.
func (s *HttpServer) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	sseutil.SetHeaders(w)
	w.WriteHeader(http.StatusOK)
	sseutil.Flush(w)

	statusCh := s.coordinator.SubscribeStatus(r.URL.Query().Get("job_id"))
	defer s.coordinator.UnsubscribeStatus(statusCh)

	ticker := time.NewTicker(keepaliveEvery)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-statusCh:
			if !ok {
				return
			}
			if err := sseutil.WriteEvent(w, "status", ev); err != nil {
				return
			}
		case <-ticker.C:
			if err := sseutil.WriteComment(w, "keepalive"); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
