package log

import "duoaccount/internal/core"

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldRequestID    = "request_id"
	FieldClientIP     = "client_ip"
	FieldMethod       = "method"
	FieldPath         = "path"
	FieldStatusCode   = "status_code"
	FieldDuration     = "duration_ms"
	FieldError        = "error"
	FieldOperation    = "operation"
	FieldDuoID        = "duo_id"
	FieldExpenseID    = "expense_id"
	FieldLabel        = "label"
	FieldAmountCents  = "amount_cents"
	FieldPaidBy       = "paid_by"
	FieldCategory     = "category"
	FieldBalanceCents = "balance_cents"
	FieldWindow       = "window"
	FieldCount        = "count"
	FieldOnline       = "online"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentLocal     = "local_cache"
	ComponentSettings  = "settings"
	ComponentAMQP      = "amqp"
	ComponentRealtime  = "realtime"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentRateLimit = "rate_limit"
	ComponentBackend   = "backend"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpRefresh  = "refresh"
	OpImport   = "import"
	OpPush     = "push"
	OpMirror   = "mirror"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithDuo(duoID string) LogFields {
	f[FieldDuoID] = duoID
	return f
}

// WithExpense adds the identifying fields of a ledger record.
func (f LogFields) WithExpense(e core.Expense) LogFields {
	if e.ID != "" {
		f[FieldExpenseID] = e.ID
	}
	f[FieldLabel] = e.Label
	f[FieldAmountCents] = e.Amount.Cents
	f[FieldPaidBy] = e.PaidBy.String()
	f[FieldCategory] = e.Category.String()
	return f
}

// WithSummary adds the headline numbers of a balance summary.
func (f LogFields) WithSummary(s core.BalanceSummary) LogFields {
	f[FieldBalanceCents] = s.Balance.Cents
	f["total_shared_cents"] = s.TotalShared.Cents
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
