// Package apierr holds the error kinds returned by the Koha clients, the
// SRU client and the MARC-XML validator.
//
// Every failure is returned as a value. Nothing in this module retries, so
// an error is terminal for the call that produced it.
package apierr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error.
type Kind int

const (
	Unknown Kind = iota
	Transport
	HTTPStatus
	NotFound
	InvalidXML
	FileNotFound
	MissingOrDuplicateLeader
	MissingControlField
	MissingDataField
	InvalidIdentifier
	InvalidPagination
	AuthenticationFailed
	UnsupportedOperation
	Diagnostic
	InvalidResponse

	// MissingStructuralElement is never set on an error. It only serves as
	// a match target for the three structural kinds.
	MissingStructuralElement
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport_error"
	case HTTPStatus:
		return "http_status_error"
	case NotFound:
		return "not_found"
	case InvalidXML:
		return "invalid_xml"
	case FileNotFound:
		return "file_not_found"
	case MissingOrDuplicateLeader:
		return "missing_or_duplicate_leader"
	case MissingControlField:
		return "missing_control_field"
	case MissingDataField:
		return "missing_data_field"
	case MissingStructuralElement:
		return "missing_structural_element"
	case InvalidIdentifier:
		return "invalid_identifier"
	case InvalidPagination:
		return "invalid_pagination"
	case AuthenticationFailed:
		return "authentication_failed"
	case UnsupportedOperation:
		return "unsupported_operation"
	case Diagnostic:
		return "diagnostic"
	case InvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// Structural reports whether k is one of the MARC-XML structure kinds.
func (k Kind) Structural() bool {
	return k == MissingOrDuplicateLeader || k == MissingControlField || k == MissingDataField
}

// Error is the error type of this module.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	s := e.Msg
	if s == "" {
		s = e.Kind.String()
	}
	if e.Status != 0 {
		s = fmt.Sprintf("%s (HTTP %d)", s, e.Status)
	}
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on kind only, so that errors.Is(err, ErrNotFound) holds for any
// not found error regardless of message or status.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	switch {
	case t.Kind == e.Kind:
		return true
	case t.Kind == MissingStructuralElement:
		return e.Kind.Structural()
	case t.Kind == HTTPStatus:
		return e.Kind == NotFound
	}
	return false
}

// Sentinel values to be used with errors.Is.
var (
	ErrTransport                = &Error{Kind: Transport}
	ErrHTTPStatus               = &Error{Kind: HTTPStatus}
	ErrNotFound                 = &Error{Kind: NotFound}
	ErrInvalidXML               = &Error{Kind: InvalidXML}
	ErrFileNotFound             = &Error{Kind: FileNotFound}
	ErrMissingOrDuplicateLeader = &Error{Kind: MissingOrDuplicateLeader}
	ErrMissingControlField      = &Error{Kind: MissingControlField}
	ErrMissingDataField         = &Error{Kind: MissingDataField}
	ErrMissingStructuralElement = &Error{Kind: MissingStructuralElement}
	ErrInvalidIdentifier        = &Error{Kind: InvalidIdentifier}
	ErrInvalidPagination        = &Error{Kind: InvalidPagination}
	ErrAuthenticationFailed     = &Error{Kind: AuthenticationFailed}
	ErrUnsupportedOperation     = &Error{Kind: UnsupportedOperation}
	ErrDiagnostic               = &Error{Kind: Diagnostic}
	ErrInvalidResponse          = &Error{Kind: InvalidResponse}
)

// New returns an error of the given kind.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap returns an error of the given kind with err as its cause.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Status returns an HTTPStatus error, or a NotFound error for 404.
func Status(op string, status int, msg string) *Error {
	kind := HTTPStatus
	if status == 404 {
		kind = NotFound
	}
	return &Error{Kind: kind, Op: op, Status: status, Msg: msg}
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// StatusOf returns the HTTP status carried by err, or zero.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}
