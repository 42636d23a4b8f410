// Package pdperrors defines the typed error taxonomy shared by every
// component of the policy decision point.
package pdperrors

import "fmt"

// Kind identifies which bucket of the taxonomy an Error belongs to.
type Kind string

// Input errors.
const (
	KindAction        Kind = "Action"
	KindCreateContext Kind = "CreateContext"
)

// Token errors. ProcessTokens is the umbrella kind; the sub-kinds below
// are carried in the Sub field so callers can switch on the precise
// failure without string-matching Message.
const (
	KindProcessTokens Kind = "ProcessTokens"
)

// Sub-kinds of KindProcessTokens.
const (
	SubUnsupportedAlg   = "UnsupportedAlg"
	SubKeyNotFound      = "KeyNotFound"
	SubInvalidSignature = "InvalidSignature"
	SubExpiredToken     = "ExpiredToken"
	SubImmatureToken    = "ImmatureToken"
	SubMissingClaims    = "MissingClaims"
)

// Entity errors.
const (
	KindCreateWorkloadEntity      Kind = "CreateWorkloadEntity"
	KindCreateUserEntity          Kind = "CreateUserEntity"
	KindCreateAccessTokenEntity   Kind = "CreateAccessTokenEntity"
	KindCreateIdTokenEntity       Kind = "CreateIdTokenEntity"
	KindCreateUserinfoTokenEntity Kind = "CreateUserinfoTokenEntity"
	KindResourceEntity            Kind = "ResourceEntity"
	KindRoleEntity                Kind = "RoleEntity"
)

// Evaluation errors.
const (
	KindWorkloadRequestValidation Kind = "WorkloadRequestValidation"
	KindUserRequestValidation     Kind = "UserRequestValidation"
	KindEntities                  Kind = "Entities"
	KindMissingPrincipal          Kind = "MissingPrincipal"
)

// Infra errors.
const (
	KindHttpStatus            Kind = "HttpStatus"
	KindMaxHttpRetriesReached Kind = "MaxHttpRetriesReached"
	KindInitialization        Kind = "Initialization"
	KindEntitiesToJson        Kind = "EntitiesToJson"
)

// Error is the single typed error carried across the PDP. Type names the
// taxonomy bucket, Sub (optional) narrows it further, Message is a
// human-readable summary, and Cause (optional) is the wrapped error.
type Error struct {
	Type    Kind
	Sub     string
	Message string
	Cause   error

	// Component names the originating piece (e.g. "jwks", "authorizer")
	// for decision-log correlation. Optional.
	Component string
	// PolicyIDs lists policy ids implicated by the error, when known.
	PolicyIDs []string
}

// New builds an Error with no cause.
func New(kind Kind, message string) *Error {
	return &Error{Type: kind, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Type: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error that carries cause as its Cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Type: kind, Message: message, Cause: cause}
}

// WithSub returns a copy of e with Sub set, for fluent construction of
// ProcessTokens sub-kinds.
func (e *Error) WithSub(sub string) *Error {
	c := *e
	c.Sub = sub
	return &c
}

// WithComponent returns a copy of e with Component set.
func (e *Error) WithComponent(component string) *Error {
	c := *e
	c.Component = component
	return &c
}

// WithPolicyIDs returns a copy of e with PolicyIDs set.
func (e *Error) WithPolicyIDs(ids []string) *Error {
	c := *e
	c.PolicyIDs = ids
	return &c
}

func (e *Error) Error() string {
	typ := string(e.Type)
	if e.Sub != "" {
		typ = typ + "/" + e.Sub
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", typ, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", typ, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether err, or any error in its Unwrap chain, is an *Error of
// the given kind (and, if sub is non-empty, the given sub-kind).
func Is(err error, kind Kind, sub string) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Type == kind && (sub == "" || e.Sub == sub) {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
