package errx

// Type groups error codes by how a caller should react to them
type Type string

const (
	// TypeInternal is a bug or an unexpected local failure
	TypeInternal Type = "INTERNAL"

	// TypeValidation is bad input; retrying the same request will not help
	TypeValidation Type = "VALIDATION"

	// TypeAuthorization is a rejected credential, usually a provider API key
	TypeAuthorization Type = "AUTHORIZATION"

	TypeNotFound Type = "NOT_FOUND"
	TypeConflict Type = "CONFLICT"

	// TypeBusiness is a request that is well formed but not allowed in the
	// current state, such as queueing an entry without a prompt
	TypeBusiness Type = "BUSINESS"

	// TypeExternal is a failure reported by a downstream provider
	TypeExternal Type = "EXTERNAL"

	// TypeTimeout is a deadline that passed while the work may still finish
	TypeTimeout Type = "TIMEOUT"

	// TypeUnavailable is a component that is shutting down or not ready
	TypeUnavailable Type = "UNAVAILABLE"
)

// String returns the string representation of the error type
func (t Type) String() string {
	return string(t)
}

// Retryable reports whether the same call may succeed later
func (t Type) Retryable() bool {
	switch t {
	case TypeExternal, TypeTimeout, TypeUnavailable:
		return true
	default:
		return false
	}
}

var typeStatus = map[Type]int{
	TypeValidation:    400,
	TypeAuthorization: 401,
	TypeNotFound:      404,
	TypeConflict:      409,
	TypeBusiness:      422,
	TypeInternal:      500,
	TypeExternal:      502,
	TypeUnavailable:   503,
	TypeTimeout:       504,
}

// HTTPStatus is the default status for errors of this type; unknown types
// are 500.
func (t Type) HTTPStatus() int {
	if s, ok := typeStatus[t]; ok {
		return s
	}
	return 500
}
