// Package realtime pushes change notifications to connected clients over
// websockets. Clients react by refetching their snapshot.
package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/olahol/melody"

	"duoaccount/internal/core"
	"duoaccount/internal/log"
)

const duoKey = "duo_id"

// Hub fans change events out to the sessions of the affected duo.
type Hub struct {
	m          *melody.Melody
	logger     *log.Logger
	defaultDuo func() string
}

// NewHub creates a hub. defaultDuo supplies the duo for connections that do
// not name one and may be nil.
func NewHub(logger *log.Logger, defaultDuo func() string) *Hub {
	if logger == nil {
		logger = log.Discard()
	}
	h := &Hub{
		m:          melody.New(),
		logger:     logger.WithComponent(log.ComponentRealtime),
		defaultDuo: defaultDuo,
	}

	// clients only listen; anything they send is ignored
	h.m.Config.MaxMessageSize = 512
	h.m.Config.PingPeriod = 30 * time.Second
	h.m.Config.PongWait = 60 * time.Second

	h.m.HandleConnect(func(s *melody.Session) {
		duo, _ := s.Get(duoKey)
		h.logger.Debug("Client connected", log.FieldDuoID, duo)
	})
	h.m.HandleDisconnect(func(s *melody.Session) {
		duo, _ := s.Get(duoKey)
		h.logger.Debug("Client disconnected", log.FieldDuoID, duo)
	})
	h.m.HandleError(func(s *melody.Session, err error) {
		h.logger.Warn("Websocket error", log.FieldError, err)
	})
	return h
}

// ServeHTTP upgrades the request. The duo is taken from the "duo" query
// parameter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	duo := r.URL.Query().Get("duo")
	if duo == "" && h.defaultDuo != nil {
		duo = h.defaultDuo()
	}
	if duo == "" {
		http.Error(w, "missing duo", http.StatusBadRequest)
		return
	}
	if err := h.m.HandleRequestWithKeys(w, r, map[string]any{duoKey: duo}); err != nil {
		h.logger.Warn("Failed to upgrade websocket", log.FieldDuoID, duo, log.FieldError, err)
	}
}

// Broadcast implements ledger.Broadcaster.
func (h *Hub) Broadcast(ev core.ChangeEvent) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to encode change event", log.FieldError, err)
		return
	}
	err = h.m.BroadcastFilter(msg, func(s *melody.Session) bool {
		duo, ok := s.Get(duoKey)
		return ok && duo == ev.DuoID
	})
	if err != nil {
		h.logger.Warn("Failed to broadcast change event", log.FieldDuoID, ev.DuoID, log.FieldError, err)
	}
}

// Sessions returns the number of connected clients.
func (h *Hub) Sessions() int {
	return h.m.Len()
}

func (h *Hub) Close() error {
	return h.m.Close()
}
