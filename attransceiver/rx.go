package attransceiver

import (
	"strconv"
	"strings"
	"time"
)

// findByte scans already-buffered bytes for delim, waiting for more bytes
// to arrive (via rxReady) as needed, until timeout elapses. It returns the
// offset of delim relative to the current read cursor. No bytes are
// consumed. This and findAny are the core "wait until delimiter" primitive
// that every delimited read composes.
func (t *Transceiver) findByte(delim byte, timeout time.Duration) (offset int, err error) {
	off, _, err := t.findAny([]byte{delim}, timeout)
	return off, err
}

// findAny is findByte for a set of candidate delimiters; it also reports
// which one matched.
func (t *Transceiver) findAny(delims []byte, timeout time.Duration) (offset int, which byte, err error) {
	deadline, unlimited := deadlineFor(timeout)
	scanned := 0
	scratch := make([]byte, 64)
	for {
		avail := t.rx.Available()
		if avail > scanned {
			need := avail - scanned
			if need > len(scratch) {
				scratch = make([]byte, need)
			}
			chunk := scratch[:need]
			t.rx.Peek(scanned, chunk)
			for i, b := range chunk {
				for _, d := range delims {
					if b == d {
						return scanned + i, b, nil
					}
				}
			}
			scanned = avail
		}
		d, ok := remaining(deadline, unlimited)
		if !ok {
			return -1, 0, ErrTimeout
		}
		t.rxReady.wait(d)
	}
}

// waitAvailable blocks until at least n bytes are buffered or timeout
// elapses.
func (t *Transceiver) waitAvailable(n int, timeout time.Duration) error {
	deadline, unlimited := deadlineFor(timeout)
	for t.rx.Available() < n {
		d, ok := remaining(deadline, unlimited)
		if !ok {
			return ErrTimeout
		}
		t.rxReady.wait(d)
	}
	return nil
}

func asciiSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == S3
}

func trimASCIISpace(s string) string {
	i := 0
	for i < len(s) && asciiSpace(s[i]) {
		i++
	}
	j := len(s)
	for j > i && asciiSpace(s[j-1]) {
		j--
	}
	return s[i:j]
}

func (t *Transceiver) markTerminator(delim byte) {
	t.startOfLine.Store(delim == S4)
}

// Read passes through exactly len(dst) raw bytes without interpreting them
// and without touching StartOfLine. A zero-length dst returns immediately.
func (t *Transceiver) Read(dst []byte, timeout time.Duration) (actual int, err error) {
	if !t.isInitialized() {
		return 0, ErrUninitialized
	}
	if len(dst) == 0 {
		return 0, nil
	}
	deadline, unlimited := deadlineFor(timeout)
	for actual < len(dst) {
		n := t.rx.Read(dst[actual:])
		actual += n
		if actual == len(dst) {
			return actual, nil
		}
		d, ok := remaining(deadline, unlimited)
		if !ok {
			return actual, ErrTimeout
		}
		t.rxReady.wait(d)
	}
	return actual, nil
}

// SkipBytes discards n raw bytes, like Read but without copying them out.
func (t *Transceiver) SkipBytes(n int, timeout time.Duration) (actual int, err error) {
	if !t.isInitialized() {
		return 0, ErrUninitialized
	}
	if n == 0 {
		return 0, nil
	}
	deadline, unlimited := deadlineFor(timeout)
	for actual < n {
		avail := t.rx.Available()
		if avail > 0 {
			p := avail
			if want := n - actual; p > want {
				p = want
			}
			actual += t.rx.Pop(p)
			if actual == n {
				return actual, nil
			}
		}
		d, ok := remaining(deadline, unlimited)
		if !ok {
			return actual, ErrTimeout
		}
		t.rxReady.wait(d)
	}
	return actual, nil
}

// SkipArgument advances past the next ',' or <S4>, inclusive.
func (t *Transceiver) SkipArgument(timeout time.Duration) error {
	if !t.isInitialized() {
		return ErrUninitialized
	}
	offset, delim, err := t.findAny([]byte{',', S4}, timeout)
	if err != nil {
		return err
	}
	t.rx.Pop(offset + 1)
	t.markTerminator(delim)
	return nil
}

// SkipLine advances past the next <S4>, inclusive.
func (t *Transceiver) SkipLine(timeout time.Duration) error {
	if !t.isInitialized() {
		return ErrUninitialized
	}
	offset, err := t.findByte(S4, timeout)
	if err != nil {
		return err
	}
	t.rx.Pop(offset + 1)
	t.markTerminator(S4)
	return nil
}

// copyTruncated writes as much of src into dst as fits, zero-terminating
// when room allows, and reports whether truncation occurred. Mirrors the
// zero-terminated-buffer-of-size-limit semantics used throughout the Rx
// API: len(dst) is the limit, so at most len(dst)-1 payload bytes are kept.
func copyTruncated(dst []byte, src string) (n int, truncated bool) {
	if len(dst) == 0 {
		return 0, len(src) > 0
	}
	max := len(dst) - 1
	n = len(src)
	if n > max {
		n = max
		truncated = true
	}
	copy(dst[:n], src[:n])
	dst[n] = 0
	return n, truncated
}

// ReadCommandAny locates the next '+', reads until ':', and copies the
// mnemonic (excluding '+' and ':') into dst, which is treated as a
// zero-terminated buffer of size len(dst). If the mnemonic does not fit,
// it is truncated and ErrTruncated is returned as a warning; the ring is
// still advanced through the ':' either way.
func (t *Transceiver) ReadCommandAny(dst []byte, timeout time.Duration) (n int, err error) {
	if !t.isInitialized() {
		return 0, ErrUninitialized
	}
	deadline, unlimited := deadlineFor(timeout)

	plusOffset, ferr := t.findByte('+', timeout)
	if ferr != nil {
		return 0, ferr
	}
	t.rx.Pop(plusOffset + 1)

	d, ok := remaining(deadline, unlimited)
	if !ok {
		return 0, ErrTimeout
	}
	colonOffset, cerr := t.findByte(':', d)
	if cerr != nil {
		return 0, cerr
	}
	raw := make([]byte, colonOffset)
	t.rx.Peek(0, raw)
	t.rx.Pop(colonOffset + 1)

	n, truncated := copyTruncated(dst, string(raw))
	if truncated {
		return n, ErrTruncated
	}
	return n, nil
}

// ReadCommand is ReadCommandAny plus a comparison against expected. On
// mismatch the mnemonic is still fully consumed through ':' and
// ErrUnexpectedContent is returned. The compare buffer is sized well past
// expected's length so that a longer mnemonic having expected as a strict
// prefix is never truncated down to a false match; ErrTruncated is itself
// treated as a mismatch rather than tolerated.
func (t *Transceiver) ReadCommand(expected string, timeout time.Duration) error {
	buf := make([]byte, len(expected)+16)
	n, err := t.ReadCommandAny(buf, timeout)
	if err != nil {
		if ae, ok := err.(*Error); !ok || ae.Kind() != KindTruncated {
			return err
		}
		return ErrUnexpectedContent
	}
	if string(buf[:n]) != expected {
		return ErrUnexpectedContent
	}
	return nil
}

// ReadArgument reads an unquoted argument terminated by ',' or <S4>,
// trimming leading/trailing ASCII whitespace (space, <S3>, tab); interior
// whitespace is preserved. dst is a zero-terminated buffer of size len(dst).
func (t *Transceiver) ReadArgument(dst []byte, timeout time.Duration) (n int, err error) {
	if !t.isInitialized() {
		return 0, ErrUninitialized
	}
	offset, delim, ferr := t.findAny([]byte{',', S4}, timeout)
	if ferr != nil {
		return 0, ferr
	}
	raw := make([]byte, offset)
	t.rx.Peek(0, raw)
	t.rx.Pop(offset + 1)
	t.markTerminator(delim)

	trimmed := trimASCIISpace(string(raw))
	n, truncated := copyTruncated(dst, trimmed)
	if truncated {
		return n, ErrTruncated
	}
	return n, nil
}

// ReadString expects an opening '"', copies bytes up to the closing '"'
// (escape sequences are not interpreted), then consumes the following ','
// or <S4> delimiter.
func (t *Transceiver) ReadString(dst []byte, timeout time.Duration) (n int, err error) {
	if !t.isInitialized() {
		return 0, ErrUninitialized
	}
	deadline, unlimited := deadlineFor(timeout)
	if err := t.waitAvailable(1, timeout); err != nil {
		return 0, err
	}
	var open [1]byte
	t.rx.Peek(0, open[:])
	if open[0] != '"' {
		return 0, ErrUnexpectedContent
	}
	t.rx.Pop(1)

	d, ok := remaining(deadline, unlimited)
	if !ok {
		return 0, ErrTimeout
	}
	closeOffset, cerr := t.findByte('"', d)
	if cerr != nil {
		return 0, cerr
	}
	raw := make([]byte, closeOffset)
	t.rx.Peek(0, raw)
	t.rx.Pop(closeOffset + 1)

	d2, ok2 := remaining(deadline, unlimited)
	if !ok2 {
		return 0, ErrTimeout
	}
	delimOffset, delim, derr := t.findAny([]byte{',', S4}, d2)
	if derr != nil {
		return 0, derr
	}
	t.rx.Pop(delimOffset + 1)
	t.markTerminator(delim)

	n, truncated := copyTruncated(dst, string(raw))
	if truncated {
		return n, ErrTruncated
	}
	return n, nil
}

// ReadHexString reads a quoted argument like ReadString, except that blanks
// (space, tab) before the opening '"' are skipped and each pair of ASCII hex
// digits inside the quotes decodes to one byte. dst's length is the byte
// limit (not a zero-terminated string buffer, since the payload is
// arbitrary binary).
func (t *Transceiver) ReadHexString(dst []byte, timeout time.Duration) (n int, err error) {
	if !t.isInitialized() {
		return 0, ErrUninitialized
	}
	deadline, unlimited := deadlineFor(timeout)
	if err := t.waitAvailable(1, timeout); err != nil {
		return 0, err
	}
	var open [1]byte
	t.rx.Peek(0, open[:])
	for open[0] == ' ' || open[0] == '\t' {
		t.rx.Pop(1)
		d, ok := remaining(deadline, unlimited)
		if !ok {
			return 0, ErrTimeout
		}
		if err := t.waitAvailable(1, d); err != nil {
			return 0, err
		}
		t.rx.Peek(0, open[:])
	}
	if open[0] != '"' {
		return 0, ErrUnexpectedContent
	}
	t.rx.Pop(1)

	d, ok := remaining(deadline, unlimited)
	if !ok {
		return 0, ErrTimeout
	}
	closeOffset, cerr := t.findByte('"', d)
	if cerr != nil {
		return 0, cerr
	}
	raw := make([]byte, closeOffset)
	t.rx.Peek(0, raw)
	t.rx.Pop(closeOffset + 1)

	d2, ok2 := remaining(deadline, unlimited)
	if !ok2 {
		return 0, ErrTimeout
	}
	delimOffset, delim, derr := t.findAny([]byte{',', S4}, d2)
	if derr != nil {
		return 0, derr
	}
	t.rx.Pop(delimOffset + 1)
	t.markTerminator(delim)

	if len(raw)%2 != 0 {
		return 0, ErrInvalidParam
	}
	decoded := len(raw) / 2
	truncated := false
	if decoded > len(dst) {
		decoded = len(dst)
		truncated = true
	}
	for i := 0; i < decoded; i++ {
		hi, ok := hexDigit(raw[2*i])
		if !ok {
			return i, ErrUnexpectedContent
		}
		lo, ok := hexDigit(raw[2*i+1])
		if !ok {
			return i, ErrUnexpectedContent
		}
		dst[i] = hi<<4 | lo
	}
	if truncated {
		return decoded, ErrTruncated
	}
	return decoded, nil
}

func hexDigit(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	default:
		return 0, false
	}
}

// readIntToken reads the raw (trimmed) argument token that ReadI*/ReadU*
// parse, consuming through its ',' or <S4> terminator exactly like
// ReadArgument.
func (t *Transceiver) readIntToken(timeout time.Duration) (string, error) {
	offset, delim, err := t.findAny([]byte{',', S4}, timeout)
	if err != nil {
		return "", err
	}
	raw := make([]byte, offset)
	t.rx.Peek(0, raw)
	t.rx.Pop(offset + 1)
	t.markTerminator(delim)
	return trimASCIISpace(string(raw)), nil
}

func parseSigned(tok string, base, bitSize int) (int64, error) {
	if base != 0 && base != 8 && base != 10 && base != 16 {
		return 0, ErrInvalidParam
	}
	v, err := strconv.ParseInt(tok, base, bitSize)
	if err != nil {
		if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			return 0, ErrOutOfResources
		}
		return 0, ErrUnexpectedContent
	}
	return v, nil
}

func parseUnsigned(tok string, base, bitSize int) (uint64, error) {
	if base != 0 && base != 8 && base != 10 && base != 16 {
		return 0, ErrInvalidParam
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(tok, "+"), base, bitSize)
	if err != nil {
		if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			return 0, ErrOutOfResources
		}
		return 0, ErrUnexpectedContent
	}
	return v, nil
}

// ReadI8 reads a signed 8-bit integer in the given radix (0 = auto-detect
// from an optional 0x/0 prefix). On error the result is zero but the ring
// has still advanced past the argument terminator.
func (t *Transceiver) ReadI8(base int, timeout time.Duration) (int8, error) {
	tok, err := t.readIntToken(timeout)
	if err != nil {
		return 0, err
	}
	v, err := parseSigned(tok, base, 8)
	if err != nil {
		return 0, err
	}
	return int8(v), nil
}

func (t *Transceiver) ReadU8(base int, timeout time.Duration) (uint8, error) {
	tok, err := t.readIntToken(timeout)
	if err != nil {
		return 0, err
	}
	v, err := parseUnsigned(tok, base, 8)
	if err != nil {
		return 0, err
	}
	return uint8(v), nil
}

func (t *Transceiver) ReadI16(base int, timeout time.Duration) (int16, error) {
	tok, err := t.readIntToken(timeout)
	if err != nil {
		return 0, err
	}
	v, err := parseSigned(tok, base, 16)
	if err != nil {
		return 0, err
	}
	return int16(v), nil
}

func (t *Transceiver) ReadU16(base int, timeout time.Duration) (uint16, error) {
	tok, err := t.readIntToken(timeout)
	if err != nil {
		return 0, err
	}
	v, err := parseUnsigned(tok, base, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

func (t *Transceiver) ReadI32(base int, timeout time.Duration) (int32, error) {
	tok, err := t.readIntToken(timeout)
	if err != nil {
		return 0, err
	}
	v, err := parseSigned(tok, base, 32)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

func (t *Transceiver) ReadU32(base int, timeout time.Duration) (uint32, error) {
	tok, err := t.readIntToken(timeout)
	if err != nil {
		return 0, err
	}
	v, err := parseUnsigned(tok, base, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// ReadCode expects <S3><S4>, a textual response code, then <S3><S4>,
// consuming all three. When the code is CONNECT followed immediately by a
// digit sequence, it reports CodeConnectRate and the parsed rate; plain
// CONNECT reports rate 0.
func (t *Transceiver) ReadCode(timeout time.Duration) (code Code, rate uint32, err error) {
	if !t.isInitialized() {
		return 0, 0, ErrUninitialized
	}
	deadline, unlimited := deadlineFor(timeout)

	if err := t.expectS3S4(timeout); err != nil {
		return 0, 0, err
	}

	d, ok := remaining(deadline, unlimited)
	if !ok {
		return 0, 0, ErrTimeout
	}
	// The code text always ends at <S3>; scan for that boundary first.
	s3Offset, ferr := t.findByte(S3, d)
	if ferr != nil {
		return 0, 0, ferr
	}
	raw := make([]byte, s3Offset)
	t.rx.Peek(0, raw)

	matched, consumed, found := codeFromText(string(raw))
	if !found {
		return 0, 0, ErrUnexpectedContent
	}
	rateDigits := string(raw[consumed:])
	if matched == CodeConnect && rateDigits != "" {
		v, perr := strconv.ParseUint(rateDigits, 10, 32)
		if perr != nil {
			return 0, 0, ErrUnexpectedContent
		}
		matched = CodeConnectRate
		rate = uint32(v)
	} else if rateDigits != "" {
		return 0, 0, ErrUnexpectedContent
	}

	t.rx.Pop(s3Offset)

	d2, ok2 := remaining(deadline, unlimited)
	if !ok2 {
		return 0, 0, ErrTimeout
	}
	if err := t.expectS3S4(d2); err != nil {
		return 0, 0, err
	}
	return matched, rate, nil
}

// expectS3S4 consumes exactly <S3><S4>, or returns ErrUnexpectedContent
// without consuming past the mismatch point.
func (t *Transceiver) expectS3S4(timeout time.Duration) error {
	if err := t.waitAvailable(2, timeout); err != nil {
		return err
	}
	var pair [2]byte
	t.rx.Peek(0, pair[:])
	if pair[0] != S3 || pair[1] != S4 {
		return ErrUnexpectedContent
	}
	t.rx.Pop(2)
	t.markTerminator(S4)
	return nil
}

// CheckEndOfLine peeks the next two bytes and reports whether they are
// <S3><S4>, without consuming anything.
func (t *Transceiver) CheckEndOfLine(timeout time.Duration) (eol bool, err error) {
	if !t.isInitialized() {
		return false, ErrUninitialized
	}
	if err := t.waitAvailable(2, timeout); err != nil {
		return false, err
	}
	var pair [2]byte
	t.rx.Peek(0, pair[:])
	return pair[0] == S3 && pair[1] == S4, nil
}
