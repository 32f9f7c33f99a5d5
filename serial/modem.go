package serial

import (
	"fmt"
	"time"
)

// ModemConfig selects the line settings an AT-capable modem expects on a
// real UART: 8N1, raw mode, and a chosen baud rate. RTSCTS enables hardware
// flow control, which most GSM/LTE modules want above 57600 baud.
type ModemConfig struct {
	Baud        CFlag
	RTSCTS      bool
	ReadTimeout time.Duration
}

// DefaultModemConfig returns 115200 8N1 with hardware flow control, a
// reasonable default for a serially-attached cellular modem.
func DefaultModemConfig() *ModemConfig {
	return &ModemConfig{
		Baud:        B115200,
		RTSCTS:      true,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// OpenModem opens the named device and configures it for AT-command
// exchange: raw mode, 8 data bits, no parity, one stop bit, and the
// requested baud rate. The returned *Port satisfies io.ReadWriter and
// io.Closer and can be passed directly to engine.New.
func OpenModem(name string, cfg *ModemConfig) (*Port, error) {
	if cfg == nil {
		cfg = DefaultModemConfig()
	}
	p, err := Open(name, cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("serial: open modem %s: %w", name, err)
	}
	attrs, err := p.GetAttr()
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("serial: get attrs for %s: %w", name, err)
	}
	attrs.MakeRaw()
	attrs.Cflag = attrs.Cflag&^CSIZE | CS8
	attrs.Cflag |= CREAD | CLOCAL
	attrs.Cflag &^= CSTOPB | PARENB
	if cfg.RTSCTS {
		attrs.Cflag |= CRTSCTS
	} else {
		attrs.Cflag &^= CRTSCTS
	}
	attrs.SetSpeed(cfg.Baud)
	if err := p.SetAttr(TCSANOW, attrs); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("serial: set attrs for %s: %w", name, err)
	}
	if err := p.Flush(TCIOFLUSH); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("serial: flush %s: %w", name, err)
	}
	return p, nil
}

// AssertReady toggles DTR/RTS high, the sequence most modems require before
// they will answer AT commands after power-up.
func (p *Port) AssertReady() error {
	return p.EnableModemLines(TIOCM_DTR | TIOCM_RTS)
}
