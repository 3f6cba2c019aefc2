package http

import (
	"errors"
	"net/http"

	"duoaccount/internal/core"
	"duoaccount/internal/log"
)

type expenseList struct {
	Expenses []core.Expense `json:"expenses"`
	Online   bool           `json:"online"`
	Pending  bool           `json:"pending"`
	Window   string         `json:"window,omitempty"`
}

// handleListExpenses refetches the snapshot and returns it, optionally
// restricted to one month.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.ledger.Refresh(ctx); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to load expenses", log.FieldError, err)
		FromError(err).Write(w)
		return
	}

	st := s.ledger.Status()
	out := expenseList{Expenses: s.ledger.Snapshot(), Online: st.Online, Pending: st.Pending}
	if hasWindow(r.URL.Query()) {
		win, err := ParseWindow(r.URL.Query(), s.now())
		if err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
		out.Expenses = core.FilterWindow(out.Expenses, win)
		out.Window = win.String()
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	s.saveExpense(w, r, "", http.StatusCreated)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.saveExpense(w, r, id, http.StatusOK)
}

func (s *Server) saveExpense(w http.ResponseWriter, r *http.Request, id string, status int) {
	ctx := r.Context()
	var req expenseRequest
	if err := decodeJSON(r, maxBodyBytes, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	stored, err := s.ledger.Save(ctx, req.toExpense(id))
	if err != nil {
		FromError(err).Write(w)
		return
	}
	NewJSONResponse().Status(status).Body(stored).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Delete(r.Context(), r.PathValue("id")); err != nil {
		FromError(err).Write(w)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errMalformedBody) {
		BadRequestError("malformed JSON body").Write(w)
		return
	}
	UnprocessableEntityError(err.Error()).Write(w)
}
