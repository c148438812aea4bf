package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldErrorKind   = "error_kind"
	FieldOperation   = "operation"
	FieldTransition  = "transition"
	FieldVersion     = "version"
	FieldWorkspaceID = "workspace_id"
	FieldUserID      = "user_id"
	FieldActorID     = "actor_id"
	FieldExpenseID   = "expense_id"
	FieldExpenseDesc = "expense_description"
	FieldAmountCents = "amount_cents"
	FieldCategory    = "category"
	FieldBlobKey     = "blob_key"
	FieldDriver      = "driver"
	FieldSizeBytes   = "size_bytes"
	FieldCommandID   = "command_id"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentAdvisor = "advisor"
	ComponentCache   = "cache"
	ComponentCLI     = "cli"
)

// Operations defines standard operation names
const (
	OpApply    = "apply"
	OpLoad     = "load"
	OpSave     = "save"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpExport   = "export"
	OpExtract  = "extract"
	OpAdvise   = "advise"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithTransition adds the transition name and resulting snapshot version
func (f LogFields) WithTransition(name string, version int64) LogFields {
	f[FieldTransition] = name
	f[FieldVersion] = version
	return f
}

// WithActor adds the acting user; empty means logged out
func (f LogFields) WithActor(userID string) LogFields {
	if userID != "" {
		f[FieldActorID] = userID
	}
	return f
}

// WithWorkspace adds workspace id field
func (f LogFields) WithWorkspace(id string) LogFields {
	if id != "" {
		f[FieldWorkspaceID] = id
	}
	return f
}

// WithExpense adds expense-related fields
func (f LogFields) WithExpense(id, desc string, amountCents int64, category string) LogFields {
	f[FieldExpenseID] = id
	f[FieldExpenseDesc] = desc
	f[FieldAmountCents] = amountCents
	f[FieldCategory] = category
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
