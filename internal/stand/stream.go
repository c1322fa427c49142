package stand

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/baely/tab/internal/common/errors"
	commonHttp "github.com/baely/tab/internal/common/http"
	"github.com/baely/tab/internal/common/logger"
)

// handleStream sends the account list as server-sent events: the current list
// first, then the new list after every change, with comment pings between
func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		commonHttp.HandleError(w, errors.Internal(errors.New("streaming unsupported")))
		return
	}
	log := logger.WithContext(r.Context(), s.logger)

	sub := s.hub.Subscribe()
	defer sub.Close()
	log.Info("Stream opened", "subscriber", sub.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var ping <-chan time.Time
	if s.heartbeat > 0 {
		ticker := time.NewTicker(s.heartbeat)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-r.Context().Done():
			log.Info("Stream closed by client", "subscriber", sub.ID)
			return
		case accounts, ok := <-sub.C():
			if !ok {
				log.Info("Stream closed by server", "subscriber", sub.ID)
				return
			}
			data, err := json.Marshal(toSummaries(accounts))
			if err != nil {
				log.Error("Failed to encode account list", "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				log.Debug("Failed to write stream event", "subscriber", sub.ID, "error", err)
				return
			}
			flusher.Flush()
		case <-ping:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				log.Debug("Failed to write stream ping", "subscriber", sub.ID, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}
