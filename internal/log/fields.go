package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldQuery       = "query"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldReferer     = "referer"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldOperation   = "operation"
	FieldOwnerID     = "owner_id"
	FieldYear        = "year"
	FieldMonth       = "month"
	FieldCategoryID  = "category_id"
	FieldBudgetGroup = "budget_group"
	FieldAmountCents = "amount_cents"
	FieldVersion     = "version"
	FieldRuleEnabled = "rule_enabled"
	FieldCacheHit    = "cache_hit"
	FieldStage       = "stage"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentBudget    = "budget"
	ComponentStorage   = "storage"
	ComponentRemote    = "remote"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
	ComponentCLI       = "cli"
)

// Operations defines standard operation names
const (
	OpRead       = "read"
	OpSummary    = "summary"
	OpSetTarget  = "set_target"
	OpSetGroup   = "set_group"
	OpSetIncome  = "set_income"
	OpPublish    = "publish"
	OpConsume    = "consume"
	OpInvalidate = "invalidate"
	OpMigrate    = "migrate"
	OpValidate   = "validate"
	OpParse      = "parse"
	OpShutdown   = "shutdown"
	OpStartup    = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeAuth          = "auth_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeAssembly      = "assembly_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// With adds an arbitrary key
func (f LogFields) With(key string, value any) LogFields {
	f[key] = value
	return f
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error message. A nil error adds nothing.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithErrorType(t string) LogFields {
	f[FieldErrorType] = t
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithPeriod adds the owner scope and budget month
func (f LogFields) WithPeriod(owner string, month, year int) LogFields {
	f[FieldOwnerID] = owner
	f[FieldMonth] = month
	f[FieldYear] = year
	return f
}

// WithTarget adds the fields of a category target change
func (f LogFields) WithTarget(categoryID, amountCents, version int64) LogFields {
	f[FieldCategoryID] = categoryID
	f[FieldAmountCents] = amountCents
	f[FieldVersion] = version
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent, referer string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	f[FieldReferer] = referer
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
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
