package attransceiver

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// PrepareWrite discards any prior partial write, records the write options
// and Tx buffer, and resets the write-state machine to Start. If NoBuffer
// is set, txBuf is ignored: every subsequent write invokes the callback
// immediately instead of accumulating here.
func (t *Transceiver) PrepareWrite(options WriteOption, txBuf []byte) error {
	if !t.isInitialized() {
		return ErrUninitialized
	}
	t.options = options
	t.txUsed = 0
	if options&NoBuffer != 0 {
		t.txBuf = nil
	} else {
		t.txBuf = txBuf
	}
	t.state = StateStart
	return nil
}

// emit accounts for and, depending on NoBuffer, either sends or buffers b.
// txUsed always tracks the total number of bytes handed off so far, which
// both the buffered Flush and the echo-consumption step rely on.
func (t *Transceiver) emit(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	if t.options&NoBuffer != 0 {
		actual, err := t.writeFunc(b)
		t.txUsed += actual
		if err != nil {
			return wrapErr(KindOutOfResources, "write callback failed", err)
		}
		if actual != len(b) {
			return ErrOutOfResources
		}
		return nil
	}
	if t.txUsed+len(b) > len(t.txBuf) {
		return ErrOutOfResources
	}
	copy(t.txBuf[t.txUsed:], b)
	t.txUsed += len(b)
	return nil
}

// TxBufferUsed returns the number of bytes accounted for in the current
// write sequence: accumulated bytes under the Tx buffer, or bytes already
// emitted via the write callback under NoBuffer.
func (t *Transceiver) TxBufferUsed() int { return t.txUsed }

// TxBuffer returns the bytes accumulated so far when the Tx buffer is in
// use (NoBuffer unset). Under NoBuffer it returns nil.
func (t *Transceiver) TxBuffer() []byte {
	if t.options&NoBuffer != 0 {
		return nil
	}
	return t.txBuf[:t.txUsed]
}

// State returns the current write-builder state.
func (t *Transceiver) State() WriteState { return t.state }

func (t *Transceiver) requireState(allowed ...WriteState) error {
	if t.options&NoState != 0 {
		return nil
	}
	for _, s := range allowed {
		if t.state == s {
			return nil
		}
	}
	return ErrInconsistentState
}

func (t *Transceiver) setState(s WriteState) {
	if t.options&NoState != 0 {
		return
	}
	t.state = s
}

// WriteAction emits "AT"+mnemonic, valid from Start, and transitions to End.
func (t *Transceiver) WriteAction(mnemonic string) error {
	if !t.isInitialized() {
		return ErrUninitialized
	}
	if err := t.requireState(StateStart); err != nil {
		return err
	}
	if err := t.emit([]byte("AT" + mnemonic)); err != nil {
		return err
	}
	t.setState(StateEnd)
	return nil
}

// WriteSet emits "AT"+mnemonic+"=", valid from Start, and transitions to
// Command, ready for argument writers.
func (t *Transceiver) WriteSet(mnemonic string) error {
	if !t.isInitialized() {
		return ErrUninitialized
	}
	if err := t.requireState(StateStart); err != nil {
		return err
	}
	if err := t.emit([]byte("AT" + mnemonic + "=")); err != nil {
		return err
	}
	t.setState(StateCommand)
	return nil
}

// WriteGet emits "AT"+mnemonic+"?", valid from Start, and transitions to
// End.
func (t *Transceiver) WriteGet(mnemonic string) error {
	if !t.isInitialized() {
		return ErrUninitialized
	}
	if err := t.requireState(StateStart); err != nil {
		return err
	}
	if err := t.emit([]byte("AT" + mnemonic + "?")); err != nil {
		return err
	}
	t.setState(StateEnd)
	return nil
}

// Write emits data verbatim regardless of the current state, then sets the
// state to newState. It is the escape hatch for content the typed writers
// cannot express.
func (t *Transceiver) Write(data []byte, newState WriteState) error {
	if !t.isInitialized() {
		return ErrUninitialized
	}
	if err := t.emit(data); err != nil {
		return err
	}
	t.state = newState
	return nil
}

// argPrefix emits the ',' separator when the state machine is tracking
// state and the previous write left us mid-argument-list.
func (t *Transceiver) argPrefix() error {
	if t.options&NoState != 0 {
		return nil
	}
	if t.state == StateArgument {
		return t.emit([]byte{','})
	}
	return nil
}

func validBase(base int) bool {
	return base == 0 || base == 8 || base == 10 || base == 16
}

// formatInt renders v (width bits wide, signed per the flag) in the given
// base. Base 0 is treated as 10. Negative values are rendered with a
// leading '-' only in decimal; octal and hex render the two's-complement
// bit pattern of the given width instead.
func formatInt(v int64, width int, signed bool, base int) string {
	if base == 0 {
		base = 10
	}
	if base == 10 {
		if signed {
			return strconv.FormatInt(v, 10)
		}
		return strconv.FormatUint(uint64(v)&widthMask(width), 10)
	}
	u := uint64(v) & widthMask(width)
	s := strconv.FormatUint(u, base)
	if base == 16 {
		s = strings.ToUpper(s)
	}
	return s
}

func widthMask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width)) - 1
}

func (t *Transceiver) writeInt(v int64, width int, signed bool, base int) error {
	if !t.isInitialized() {
		return ErrUninitialized
	}
	if !validBase(base) {
		return ErrInvalidParam
	}
	if err := t.requireState(StateCommand, StateArgument); err != nil {
		return err
	}
	if err := t.argPrefix(); err != nil {
		return err
	}
	if err := t.emit([]byte(formatInt(v, width, signed, base))); err != nil {
		return err
	}
	t.setState(StateArgument)
	return nil
}

func (t *Transceiver) WriteI8(v int8, base int) error  { return t.writeInt(int64(v), 8, true, base) }
func (t *Transceiver) WriteU8(v uint8, base int) error { return t.writeInt(int64(v), 8, false, base) }
func (t *Transceiver) WriteI16(v int16, base int) error {
	return t.writeInt(int64(v), 16, true, base)
}
func (t *Transceiver) WriteU16(v uint16, base int) error {
	return t.writeInt(int64(v), 16, false, base)
}
func (t *Transceiver) WriteI32(v int32, base int) error {
	return t.writeInt(int64(v), 32, true, base)
}
func (t *Transceiver) WriteU32(v uint32, base int) error {
	return t.writeInt(int64(v), 32, false, base)
}

// WriteString emits the argument-list separator if needed, then s enclosed
// in double quotes verbatim (no escaping).
func (t *Transceiver) WriteString(s string) error {
	if !t.isInitialized() {
		return ErrUninitialized
	}
	if err := t.requireState(StateCommand, StateArgument); err != nil {
		return err
	}
	if err := t.argPrefix(); err != nil {
		return err
	}
	if err := t.emit([]byte(`"` + s + `"`)); err != nil {
		return err
	}
	t.setState(StateArgument)
	return nil
}

// WriteHexString emits the argument-list separator if needed, then data
// encoded as uppercase ASCII hex enclosed in double quotes.
func (t *Transceiver) WriteHexString(data []byte) error {
	if !t.isInitialized() {
		return ErrUninitialized
	}
	if err := t.requireState(StateCommand, StateArgument); err != nil {
		return err
	}
	if err := t.argPrefix(); err != nil {
		return err
	}
	encoded := strings.ToUpper(hex.EncodeToString(data))
	if err := t.emit([]byte(`"` + encoded + `"`)); err != nil {
		return err
	}
	t.setState(StateArgument)
	return nil
}

// Flush terminates the command (<S3><S4> unless NoFinalTerminator), sends
// the accumulated Tx buffer (a no-op under NoBuffer, since each fragment
// was already sent as it was written), consumes the echo unless NoEcho is
// set, and resets the builder to Start.
func (t *Transceiver) Flush(timeout time.Duration) error {
	if !t.isInitialized() {
		return ErrUninitialized
	}
	if err := t.requireState(StateEnd, StateArgument); err != nil {
		return err
	}
	if t.options&NoFinalTerminator == 0 {
		if err := t.emit([]byte{S3, S4}); err != nil {
			return err
		}
	}
	emittedLen := t.txUsed

	if t.options&NoBuffer == 0 {
		payload := t.txBuf[:t.txUsed]
		actual, err := t.writeFunc(payload)
		if err != nil {
			return wrapErr(KindOutOfResources, "write callback failed", err)
		}
		if actual != len(payload) {
			return ErrOutOfResources
		}
	}

	if t.options&NoEcho == 0 {
		if _, err := t.SkipBytes(emittedLen, timeout); err != nil {
			return err
		}
	}

	t.state = StateStart
	t.txUsed = 0
	return nil
}
