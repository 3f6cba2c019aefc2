package http

import (
	"net/http"

	"duoaccount/internal/log"
	"duoaccount/internal/settings"
)

type settingsRequest struct {
	DuoID *string `json:"duoId"`
	PIN   *string `json:"pin"`
}

type unlockRequest struct {
	PIN string `json:"pin"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Body(s.settings.Get().View()).Write(w)
}

// handleUpdateSettings changes the duo id and/or PIN. Both fields are
// validated before either is applied. Switching duo reloads the ledger for
// the new pair.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req settingsRequest
	if err := decodeJSON(r, maxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	var duoID string
	switchDuo := req.DuoID != nil && *req.DuoID != s.settings.Get().DuoID
	if switchDuo {
		duoID = sanitizeInput(*req.DuoID)
		if err := settings.ValidateDuoID(duoID); err != nil {
			FromError(err).Write(w)
			return
		}
	}
	if req.PIN != nil {
		if err := settings.ValidatePIN(*req.PIN); err != nil {
			FromError(err).Write(w)
			return
		}
	}

	if req.PIN != nil {
		if err := s.settings.SetPIN(*req.PIN); err != nil {
			FromError(err).Write(w)
			return
		}
	}
	if switchDuo {
		if err := s.settings.SetDuoID(duoID); err != nil {
			FromError(err).Write(w)
			return
		}
		log.FromContext(ctx).InfoContext(ctx, "Duo switched", log.FieldDuoID, s.settings.Get().DuoID)
		if err := s.ledger.Refresh(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Refresh after duo switch failed", log.FieldError, err)
		}
	}
	NewJSONResponse().Body(s.settings.Get().View()).Write(w)
}

func (s *Server) handleLock(w http.ResponseWriter, _ *http.Request) {
	if err := s.settings.Lock(); err != nil {
		FromError(err).Write(w)
		return
	}
	NewJSONResponse().Body(s.settings.Get().View()).Write(w)
}

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req unlockRequest
	if err := decodeJSON(r, maxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := s.settings.Unlock(req.PIN); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Unlock refused", log.FieldError, err)
		FromError(err).Write(w)
		return
	}
	NewJSONResponse().Body(s.settings.Get().View()).Write(w)
}
