package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mpapenbr/rally-manager-go/log"
	"github.com/mpapenbr/rally-manager-go/pkg/service/registry"
)

const (
	eventRaceSettled  = "race.settled"
	keepAliveInterval = 30 * time.Second
)

// raceEvents streams settled races as server-sent events until the client
// disconnects or the event source is closed.
func (s *Server) raceEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, r, fmt.Errorf("%w: event stream is not enabled", registry.ErrNotFound))
		return
	}
	l := log.GetFromContext(r.Context())
	rc := http.NewResponseController(w)
	ch := s.events.Subscribe()
	defer s.events.CancelSubscription(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		l.Warn("event stream not supported", log.ErrorField(err))
		return
	}
	l.Debug("event stream opened")

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			l.Debug("event stream closed by client")
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		case msg, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				l.Error("could not encode event", log.ErrorField(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\nid: %s\ndata: %s\n\n",
				eventRaceSettled, msg.RunID, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
