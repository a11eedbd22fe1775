// Package apperr carries the error kinds shared by ingestion, binding, aggregation and the stores.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an expected, recoverable failure so callers can branch without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	UnsupportedFormat
	DecodeFailed
	MissingColumns
	EmptyAfterMerge
	MissingGeometryColumn
	InvalidGeometry
	TypeMismatch
	NotFound
	Protected
	Invalid
	Upstream
	LevelMismatch
	InvalidCodes
	PaletteExhausted
	DuplicateName
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	UnsupportedFormat:     "unsupported_format",
	DecodeFailed:          "decode_failed",
	MissingColumns:        "missing_columns",
	EmptyAfterMerge:       "empty_after_merge",
	MissingGeometryColumn: "missing_geometry_column",
	InvalidGeometry:       "invalid_geometry",
	TypeMismatch:          "type_mismatch",
	NotFound:              "not_found",
	Protected:             "protected",
	Invalid:               "invalid",
	Upstream:              "upstream",
	LevelMismatch:         "level_mismatch",
	InvalidCodes:          "invalid_codes",
	PaletteExhausted:      "palette_exhausted",
	DuplicateName:         "duplicate_name",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText reads the snake_case name; unknown names decode as KindUnknown.
func (k *Kind) UnmarshalText(b []byte) error {
	*k = KindUnknown
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			break
		}
	}
	return nil
}

// HTTPStatus maps a kind onto the status code the API answers with.
func (k Kind) HTTPStatus() int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case Protected:
		return http.StatusForbidden
	case Upstream:
		return http.StatusBadGateway
	case KindUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusUnprocessableEntity
	}
}

// Error is a classified failure. Msg is operator-facing text; Err is the optional technical cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, &apperr.Error{Kind: apperr.NotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

func New(kind Kind, msg string) error { return &Error{Kind: kind, Msg: msg} }

func Wrap(kind Kind, msg string, err error) error { return &Error{Kind: kind, Msg: msg, Err: err} }

// KindOf returns the kind of the first *Error in the chain, KindUnknown otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the operator-facing message of the first *Error in the chain, or err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
