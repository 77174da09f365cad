package constants

// Context keys
const (
	ContextKeyPrincipal = "principal"
)

// Validation limits
const (
	MinPasswordLength = 8
	MaxProgress       = 100
	MaxCapacity       = 100
)

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)
