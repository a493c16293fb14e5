package log

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldRequestID    = "request_id"
	FieldClientIP     = "client_ip"
	FieldMethod       = "method"
	FieldPath         = "path"
	FieldQuery        = "query"
	FieldStatusCode   = "status_code"
	FieldDuration     = "duration_ms"
	FieldUserAgent    = "user_agent"
	FieldSuccess      = "success"
	FieldError        = "error"
	FieldOperation    = "operation"
	FieldCardID       = "card_id"
	FieldPurchaseID   = "purchase_id"
	FieldGroupID      = "group_id"
	FieldPurchaseName = "purchase_name"
	FieldInstallments = "installments"
	FieldMonth        = "invoice_month"
	FieldAmountCents  = "amount_cents"
	FieldTotalCents   = "total_cents"
	FieldCount        = "count"
)

const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentPurchase  = "purchase"
	ComponentCatalog   = "catalog"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentReconcile = "reconcile"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
	ComponentCLI       = "cli"
)

const (
	OpCreate    = "create"
	OpRead      = "read"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpList      = "list"
	OpRefresh   = "refresh"
	OpReconcile = "reconcile"
	OpPublish   = "publish"
	OpSync      = "sync"
	OpExport    = "export"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields builds a set of structured fields.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
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

// WithPurchase adds the fields identifying a purchase event.
func (f LogFields) WithPurchase(cardID int64, groupID, name string, totalCents int64, installments int) LogFields {
	f[FieldCardID] = cardID
	f[FieldGroupID] = groupID
	f[FieldPurchaseName] = name
	f[FieldAmountCents] = totalCents
	f[FieldInstallments] = installments
	return f
}

// WithInvoice adds the (month, card) pair and its total.
func (f LogFields) WithInvoice(month string, cardID, totalCents int64) LogFields {
	f[FieldMonth] = month
	f[FieldCardID] = cardID
	f[FieldTotalCents] = totalCents
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to slog key/value pairs. The component is
// dropped because Logger adds its own.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		if k == FieldComponent {
			continue
		}
		slice = append(slice, k, v)
	}
	return slice
}
