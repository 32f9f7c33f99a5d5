// Package attransceiver implements the AT-protocol transceiver: a
// bidirectional, lock-protected serial tokenizer and command builder that
// mediates between application code and an AT-capable modem. See the
// package-level design notes in SPEC_FULL.md for the full rationale; this
// file holds the shared data model (§3).
package attransceiver

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/daedaluz/atmodem/ring"
)

// S3 and S4 are the V.250 line terminators: carriage return and line feed.
const (
	S3 byte = 0x0D
	S4 byte = 0x0A
)

// WriteOption is a bitset controlling PrepareWrite/Flush behaviour.
type WriteOption uint8

const (
	// NoOption is the default: state machine enforced, echo consumed, a
	// terminator appended on flush, and the Tx buffer used.
	NoOption WriteOption = 0
	// NoEcho disables echo consumption during Flush.
	NoEcho WriteOption = 1 << 0
	// NoFinalTerminator, when set, skips appending <CR><LF> on Flush.
	NoFinalTerminator WriteOption = 1 << 1
	// NoState bypasses the write-state machine entirely.
	NoState WriteOption = 1 << 2
	// NoBuffer bypasses the Tx buffer: every write invokes the callback
	// immediately with the formatted fragment.
	NoBuffer WriteOption = 1 << 3
)

// WriteState is the command-builder state machine (§3, §4.C).
type WriteState int

const (
	StateInvalid WriteState = iota
	StateStart
	StateCommand
	StateArgument
	StateEnd
)

func (s WriteState) String() string {
	switch s {
	case StateStart:
		return "Start"
	case StateCommand:
		return "Command"
	case StateArgument:
		return "Argument"
	case StateEnd:
		return "End"
	default:
		return "Invalid"
	}
}

// WriteFunc pushes Tx bytes toward the modem. actualWritten must equal
// len(data) on success; it is invoked with the transceiver's lock held.
type WriteFunc func(data []byte) (actualWritten int, err error)

// signal is a level-triggered wakeup used for rx-ready: Post may run from
// the feeder (potentially an ISR-equivalent goroutine); Wait is used by
// readers and tolerates spurious wakeups, re-checking the ring themselves.
type signal struct {
	mu sync.Mutex
	ch chan struct{}
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{})}
}

// post wakes every current waiter. It never blocks.
func (s *signal) post() {
	s.mu.Lock()
	close(s.ch)
	s.ch = make(chan struct{})
	s.mu.Unlock()
}

// wait blocks until the next post or until timeout elapses (negative means
// no timeout). Returns false on timeout.
func (s *signal) wait(timeout time.Duration) bool {
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()
	if timeout < 0 {
		<-ch
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return true
	case <-timer.C:
		return false
	}
}

// Transceiver is the long-lived instance described in §3. Zero value is not
// usable; construct with Initialize.
type Transceiver struct {
	initialized atomic.Bool
	startOfLine atomic.Bool

	rx      *ring.Buffer
	rxReady *signal
	lk      *lock

	// Tx side: touched only by whichever goroutine currently holds lk.
	txBuf     []byte
	txUsed    int
	options   WriteOption
	state     WriteState
	writeFunc WriteFunc
}

// Initialize constructs a transceiver over a caller-owned byte buffer used
// as the Rx ring. The buffer is exclusively owned by the transceiver for its
// lifetime. writeFunc must be non-nil; it is the Tx write callback.
func Initialize(rxBuffer []byte, writeFunc WriteFunc) (*Transceiver, error) {
	if len(rxBuffer) == 0 {
		return nil, wrapErr(KindInvalidParam, "rxBuffer must be non-empty", nil)
	}
	if writeFunc == nil {
		return nil, wrapErr(KindInvalidParam, "writeFunc must not be nil", nil)
	}
	t := &Transceiver{
		rx:        ring.New(rxBuffer),
		rxReady:   newSignal(),
		lk:        newLockSignal(),
		writeFunc: writeFunc,
		state:     StateInvalid,
	}
	t.startOfLine.Store(true)
	t.initialized.Store(true)
	return t, nil
}

// Deinitialize releases the transceiver's signals. The caller reclaims the
// backing Rx buffer. Any further operation on t returns ErrUninitialized.
func (t *Transceiver) Deinitialize() error {
	if !t.initialized.Swap(false) {
		return ErrUninitialized
	}
	return nil
}

func (t *Transceiver) isInitialized() bool {
	return t.initialized.Load()
}

// Feed delivers freshly-received bytes into the Rx ring. It is the single
// producer operation and is always permitted, even while another goroutine
// holds the lock and is mid-read; it is safe to call from an
// interrupt-equivalent context (e.g. directly from a UART read callback).
//
// If the ring cannot hold all of data, as many bytes as fit are written,
// actual reports that count, and err is ErrOutOfResources; already-written
// bytes remain queued. The caller may retry the remainder once more ring
// space frees up.
func (t *Transceiver) Feed(data []byte) (actual int, err error) {
	if !t.isInitialized() {
		return 0, ErrUninitialized
	}
	n, pushErr := t.rx.Push(data)
	if n > 0 {
		t.rxReady.post()
	}
	if pushErr != nil {
		return n, wrapErr(KindOutOfResources, "ring buffer full", pushErr)
	}
	return n, nil
}

// Pending reports how many unread bytes are currently buffered in the Rx
// ring. It lets a URC listener avoid acquiring the lock when there is
// nothing to read.
func (t *Transceiver) Pending() int {
	return t.rx.Available()
}

// IsStartOfLine reports the cached start-of-line flag with no I/O. It is
// true exactly when the tokenizer just consumed a <S3><S4> terminator, or
// the transceiver was just initialized.
func (t *Transceiver) IsStartOfLine() bool {
	return t.startOfLine.Load()
}

func deadlineFor(timeout time.Duration) (deadline time.Time, unlimited bool) {
	if timeout < 0 {
		return time.Time{}, true
	}
	return time.Now().Add(timeout), false
}

func remaining(deadline time.Time, unlimited bool) (time.Duration, bool) {
	if unlimited {
		return -1, true
	}
	d := time.Until(deadline)
	return d, d > 0
}
