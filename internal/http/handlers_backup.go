package http

import (
	"fmt"
	"io"
	"net/http"

	"duoaccount/internal/ledger"
	"duoaccount/internal/log"
)

// handleExport downloads the snapshot and settings as a JSON document.
func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	current := s.settings.Get()
	name := fmt.Sprintf("duoaccount-%s-%s.json", current.DuoID, s.now().Format("2006-01-02"))
	NewJSONResponse().
		Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name)).
		Body(s.ledger.Export(current.View())).
		Write(w)
}

// handleImport loads an exported document as a pending import.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		BadRequestError(ledger.ErrInvalidBackup.Error()).Write(w)
		return
	}
	records, err := ledger.ParseBackup(data)
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Rejected backup file", log.FieldError, err)
		FromError(err).Write(w)
		return
	}
	if err := s.ledger.Import(ctx, records); err != nil {
		FromError(err).Write(w)
		return
	}
	NewJSONResponse().Body(map[string]int{"imported": len(records)}).Write(w)
}

// handlePush uploads the pending import to the shared store.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	n, err := s.ledger.PushLocal(r.Context())
	if err != nil {
		FromError(err).Write(w)
		return
	}
	NewJSONResponse().Body(map[string]int{"pushed": n}).Write(w)
}

// handleDiscardImport drops the pending import and shows the shared ledger
// again.
func (s *Server) handleDiscardImport(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DiscardImport(r.Context()); err != nil {
		FromError(err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
