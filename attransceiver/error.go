package attransceiver

// Kind classifies the error values this package returns, mirroring the
// error-kind table of the AT transceiver design: every operation returns one
// of these kinds (or nil) rather than raising an exception.
type Kind int

const (
	// KindInvalidParam: null pointer, zero-length where disallowed,
	// unsupported radix, odd hex digit count.
	KindInvalidParam Kind = iota + 1
	// KindUninitialized: operation on a non-initialized instance.
	KindUninitialized
	// KindInconsistentState: write in the wrong state, or a lock-protected
	// op called without the lock.
	KindInconsistentState
	// KindTimeout: blocking wait exceeded its tick budget.
	KindTimeout
	// KindOutOfResources: Tx buffer full, integer overflow, ring overflow.
	KindOutOfResources
	// KindUnexpectedContent: parsed bytes did not match expected grammar.
	KindUnexpectedContent
	// KindTruncated is a warning, not a hard failure: the destination was
	// too small, but the ring was still advanced past the token.
	KindTruncated
)

func (k Kind) String() string {
	switch k {
	case KindInvalidParam:
		return "invalid parameter"
	case KindUninitialized:
		return "uninitialized"
	case KindInconsistentState:
		return "inconsistent state"
	case KindTimeout:
		return "timeout"
	case KindOutOfResources:
		return "out of resources"
	case KindUnexpectedContent:
		return "unexpected content"
	case KindTruncated:
		return "truncated"
	default:
		return "unknown"
	}
}

// Error carries a Kind plus an optional message and wrapped cause, in the
// same shape as the teacher package's error.go (msg + err, Unwrap()).
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	msg := e.kind.String()
	if e.msg != "" {
		msg = e.msg
	}
	if e.err != nil {
		msg += ": " + e.err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.err }

// Kind reports the error classification for callers that need to branch on
// more than a sentinel identity (errors.Is still works, see Is below).
func (e *Error) Kind() Kind { return e.kind }

// Warning reports whether this error is a warning-level result (currently
// only KindTruncated): callers may safely continue the read sequence.
func (e *Error) Warning() bool { return e.kind == KindTruncated }

// Is makes errors.Is(err, ErrTimeout) (etc.) match any *Error of the same
// Kind, regardless of the attached message or wrapped cause.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.kind == te.kind
}

func newErr(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func wrapErr(kind Kind, msg string, err error) *Error {
	return &Error{kind: kind, msg: msg, err: err}
}

// Sentinel errors, one per Kind, for use with errors.Is.
var (
	ErrInvalidParam      = newErr(KindInvalidParam, "")
	ErrUninitialized     = newErr(KindUninitialized, "")
	ErrInconsistentState = newErr(KindInconsistentState, "")
	ErrTimeout           = newErr(KindTimeout, "")
	ErrOutOfResources    = newErr(KindOutOfResources, "")
	ErrUnexpectedContent = newErr(KindUnexpectedContent, "")
	ErrTruncated         = newErr(KindTruncated, "")
)
