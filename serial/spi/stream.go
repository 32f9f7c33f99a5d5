package spi

// Stream adapts a full-duplex SPI Device to the io.Reader/io.Writer pair an
// AT transceiver transport needs. SPI has no notion of "nothing to send";
// Read clocks out idle bytes to solicit whatever the peer has queued, and
// Write clocks out the given bytes while discarding the shifted-in replies.
// This is the AT-over-SPI pattern used by modules that expose their command
// interface on a SPI bus instead of a UART (no RS232/RS485 handshaking).
type Stream struct {
	dev  *Device
	idle byte
}

// NewStream wraps dev for byte-stream use. idle is the filler byte clocked
// out while reading; most SPI modems define 0x00 or 0xFF as "nothing to
// send" and will slot a reply byte into each Tx they answer to.
func NewStream(dev *Device, idle byte) *Stream {
	return &Stream{dev: dev, idle: idle}
}

// Read performs a full-duplex transfer of len(p) idle bytes and returns
// whatever the peer shifted back.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	out := make([]byte, len(p))
	for i := range out {
		out[i] = s.idle
	}
	in, err := s.dev.Tx(out)
	if err != nil {
		return 0, err
	}
	n := copy(p, in)
	return n, nil
}

// Write clocks data out, discarding whatever comes back on MISO.
func (s *Stream) Write(data []byte) (int, error) {
	_, err := s.dev.Tx(data)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// Close releases the underlying device.
func (s *Stream) Close() error {
	return s.dev.Close()
}
