package services

import "fmt"

// ErrorKind classifies a service failure for the transport layer.
type ErrorKind int

const (
	// KindValidation is a client error.
	KindValidation ErrorKind = iota + 1
	// KindDataIntegrity means the seeded question bank is inconsistent.
	KindDataIntegrity
	// KindPersistence is a storage failure.
	KindPersistence
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindDataIntegrity:
		return "data_integrity"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error codes returned to clients.
const (
	CodeMissingRequiredChoice       = "MissingRequiredChoice"
	CodeInvalidOption               = "InvalidOption"
	CodeSupplementalMetadataMissing = "SupplementalMetadataMissing"
	CodePersistenceFailure          = "PersistenceFailure"
)

// Error is returned by every service operation that fails.
type Error struct {
	Kind   ErrorKind
	Code   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

func validationError(code, detail string, err error) *Error {
	return &Error{Kind: KindValidation, Code: code, Detail: detail, Err: err}
}

func persistenceError(detail string, err error) *Error {
	return &Error{Kind: KindPersistence, Code: CodePersistenceFailure, Detail: detail, Err: err}
}
