package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldSource      = "source"
	FieldRows        = "rows"
	FieldEntities    = "entities"
	FieldGroups      = "groups"
	FieldSelection   = "selection_size"
	FieldTrendRows   = "trend_rows"
	FieldBreakdown   = "breakdown_rows"
	FieldCacheHit    = "cache_hit"
	FieldRemoteAddr  = "remote_addr"
	FieldMessageType = "message_type"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentEngine    = "engine"
	ComponentSource    = "source"
	ComponentCache     = "cache"
	ComponentWebsocket = "websocket"
	ComponentTemplate  = "template"
)

// Operations defines standard operation names
const (
	OpLoad      = "load"
	OpTransform = "transform"
	OpRender    = "render"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)
