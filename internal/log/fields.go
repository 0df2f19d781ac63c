package log

// Common field names for structured logging.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldUserID     = "user_id"
	FieldBudgetID   = "budget_id"
	FieldCategoryID = "category_id"
	FieldPeriod     = "period"
	FieldYear       = "year"
	FieldMonth      = "month"
	FieldAssigned   = "assigned_cents"
	FieldCreated    = "created"
)

// Components tagged onto the process loggers.
const (
	ComponentApp    = "app"
	ComponentWorker = "worker"
)

// Operations named in log records.
const (
	OpInit     = "init_month"
	OpAssign   = "assign"
	OpMirror   = "mirror"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
