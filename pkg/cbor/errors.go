// Package cbor implements a bit-exact RFC 8949 CBOR codec: a streaming
// byte tokenizer, an item decoder, a canonical encoder, and a
// pluggable tag-processor registry.
package cbor

import "fmt"

// Kind identifies the category of a codec error. Callers compare against
// these with errors.Is or the Error.Kind accessor rather than matching
// on message text.
type Kind uint8

const (
	// KindUnknown is never returned; it exists so the zero Kind is invalid.
	KindUnknown Kind = iota
	KindInvalidInfo
	KindInvalidSimpleValue
	KindInsufficientData
	KindTooLong
	KindMalformedUTF8
	KindUnexpectedKind
	KindDuplicateLabel
	KindOutOfRange
	KindUnsupportedAlgorithm
	KindUnsupportedCurve
	KindKeyNotAvailable
	KindSignatureInvalid
	KindCertificateEncoding
	KindIllegalState
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInfo:
		return "InvalidInfo"
	case KindInvalidSimpleValue:
		return "InvalidSimpleValue"
	case KindInsufficientData:
		return "InsufficientData"
	case KindTooLong:
		return "TooLong"
	case KindMalformedUTF8:
		return "MalformedUtf8"
	case KindUnexpectedKind:
		return "UnexpectedKind"
	case KindDuplicateLabel:
		return "DuplicateLabel"
	case KindOutOfRange:
		return "OutOfRange"
	case KindUnsupportedAlgorithm:
		return "UnsupportedAlgorithm"
	case KindUnsupportedCurve:
		return "UnsupportedCurve"
	case KindKeyNotAvailable:
		return "KeyNotAvailable"
	case KindSignatureInvalid:
		return "SignatureInvalid"
	case KindCertificateEncoding:
		return "CertificateEncoding"
	case KindIllegalState:
		return "IllegalState"
	default:
		return "Unknown"
	}
}

// Error is the error type returned by every operation in this module and
// its sibling cose/cwt/mdoc packages. Decode errors carry the byte Offset
// at which the problem was detected (§7 Propagation).
type Error struct {
	Kind    Kind
	Msg     string
	Offset  int64 // -1 when not applicable
	Wrapped error
}

func (e *Error) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("cbor: %s: %s (at offset %d)", e.Kind, e.Msg, e.Offset)
	}
	return fmt.Sprintf("cbor: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is lets errors.Is(err, cbor.ErrKind(KindTooLong)) style comparisons work.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

func newErr(kind Kind, offset int64, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Offset: offset}
}

func wrapErr(kind Kind, offset int64, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Offset: offset, Wrapped: err}
}

// ErrKind builds a bare *Error carrying only a Kind, suitable as the
// target of errors.Is(err, cbor.ErrKind(cbor.KindTooLong)).
func ErrKind(k Kind) error { return &Error{Kind: k, Offset: -1} }
