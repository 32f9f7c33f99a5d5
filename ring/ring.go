// Package ring implements the byte FIFO used to carry bytes from the modem
// into the tokenizer. Push is the single producer (callable from an ISR);
// Read/Peek/Pop form the single consumer side and must only be called by one
// goroutine at a time.
package ring

import "sync/atomic"

// Buffer is a fixed-capacity byte ring. It is safe for exactly one producer
// goroutine calling Push concurrently with exactly one consumer goroutine
// calling Peek/Pop/Read/Available. Any other combination is a data race.
type Buffer struct {
	data []byte
	cap  uint64
	head atomic.Uint64 // next write index (producer-owned)
	tail atomic.Uint64 // next read index (consumer-owned)
}

// New allocates a ring buffer backed by a caller-provided byte slice. The
// slice is owned by the Buffer for its lifetime; the caller must not touch
// it directly.
func New(buf []byte) *Buffer {
	return &Buffer{
		data: buf,
		cap:  uint64(len(buf)),
	}
}

// Cap returns the ring's total capacity in bytes.
func (b *Buffer) Cap() int {
	return int(b.cap)
}

// Available returns the number of unread bytes currently stored.
func (b *Buffer) Available() int {
	return int(b.head.Load() - b.tail.Load())
}

// Free returns the number of bytes that can currently be written.
func (b *Buffer) Free() int {
	return int(b.cap) - b.Available()
}

// Push writes as many bytes of src as fit and reports how many were
// actually written. If src does not fully fit, the bytes that do fit are
// written and ErrOutOfResources is returned; already-written bytes remain
// in the ring. Push is the sole producer operation and may be called from
// an interrupt context concurrently with any consumer operation.
func (b *Buffer) Push(src []byte) (actual int, err error) {
	free := b.Free()
	n := len(src)
	if n > free {
		n = free
		err = ErrOutOfResources
	}
	if n == 0 {
		return 0, err
	}
	head := b.head.Load()
	for i := 0; i < n; i++ {
		idx := (head + uint64(i)) % b.cap
		b.data[idx] = src[i]
	}
	b.head.Store(head + uint64(n))
	return n, err
}

// Peek copies up to len(dst) bytes starting at offset bytes past the current
// read cursor, without consuming them. It returns the number of bytes
// actually copied, which may be less than len(dst) if fewer are available.
func (b *Buffer) Peek(offset int, dst []byte) int {
	avail := b.Available()
	if offset >= avail {
		return 0
	}
	tail := b.tail.Load()
	n := avail - offset
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		idx := (tail + uint64(offset+i)) % b.cap
		dst[i] = b.data[idx]
	}
	return n
}

// Pop advances the consumer cursor by n bytes without copying. n is clamped
// to the number of bytes available.
func (b *Buffer) Pop(n int) int {
	avail := b.Available()
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return 0
	}
	b.tail.Add(uint64(n))
	return n
}

// Read is Peek followed by Pop of however many bytes Peek produced.
func (b *Buffer) Read(dst []byte) int {
	n := b.Peek(0, dst)
	b.Pop(n)
	return n
}

// Reset drops all buffered data, returning the ring to empty. Only the
// consumer may call Reset, and only while the producer is quiesced (e.g.
// while the transceiver lock is held and Feed is not in flight).
func (b *Buffer) Reset() {
	b.tail.Store(b.head.Load())
}
