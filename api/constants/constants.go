package constants

// Common error messages
const (
	ErrInvalidJSON        = "invalid json or missing fields"
	ErrInvalidRequestBody = "Invalid request body"
	ErrMethodNotAllowed   = "Method Not Allowed"
	ErrDB                 = "DB error"
)

// Content Types
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "Content-Type"
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Headers
const (
	HeaderAccessControlAllowOrigin  = "Access-Control-Allow-Origin"
	HeaderAccessControlAllowHeaders = "Access-Control-Allow-Headers"
	HeaderContentDisposition        = "Content-Disposition"
)

// Date formats
const (
	DateFormat        = "2006-01-02"
	DisplayDateFormat = "2006/01/02"
)

// Upload limits
const (
	MaxUploadBytes  = 32 << 20
	FormFieldFile   = "file"
	FormFieldUserID = "user_id"
	FormFieldAsync  = "async"
	DefaultActor    = "system"
	TemplateCSVName = "collections_template.csv"
	TemplateXLSName = "collections_template.xlsx"
)
