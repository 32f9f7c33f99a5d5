package serial

import (
	"fmt"
	"strings"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"github.com/daedaluz/fdev/poll"
	ioctl "github.com/daedaluz/goioctl"
)

// Termios mirrors struct termios from <asm-generic/termbits.h>. Only the
// fields Open/MakeRaw/SetSpeed touch are meaningful to this package; Cc is
// kept as the raw control-character array since nothing here indexes it.
type Termios struct {
	Iflag IFlag      /* input mode flags */
	Oflag OFlag      /* output mode flags */
	Cflag CFlag      /* control mode flags */
	Lflag LFlag      /* local mode flags */
	Line  Discipline /* line discipline */
	Cc    [19]byte   /* control characters */
}

type IFlag uint32

// Input flags MakeRaw clears.
const (
	IGNBRK = IFlag(0000001)
	BRKINT = IFlag(0000002)
	PARMRK = IFlag(0000010)
	ISTRIP = IFlag(0000040)
	INLCR  = IFlag(0000100)
	IGNCR  = IFlag(0000200)
	ICRNL  = IFlag(0000400)
	IXON   = IFlag(0002000)
)

type OFlag uint32

// OPOST is the one output flag MakeRaw clears (implementation-defined
// output post-processing, e.g. NL->CRNL translation, must be off on a
// command channel so the modem sees exactly what was written).
const (
	OPOST = OFlag(0000001)
)

type CFlag uint32

// Control flags. CBAUD and the B* baud constants select the link speed;
// CSIZE/CS8/CSTOPB/PARENB/CREAD/CLOCAL/CRTSCTS configure the 8N1,
// flow-controlled, locally-owned line a directly attached modem expects.
const (
	CBAUD  = CFlag(0010017)
	B0     = CFlag(0000000)
	B50    = CFlag(0000001)
	B75    = CFlag(0000002)
	B110   = CFlag(0000003)
	B134   = CFlag(0000004)
	B150   = CFlag(0000005)
	B200   = CFlag(0000006)
	B300   = CFlag(0000007)
	B600   = CFlag(0000010)
	B1200  = CFlag(0000011)
	B1800  = CFlag(0000012)
	B2400  = CFlag(0000013)
	B4800  = CFlag(0000014)
	B9600  = CFlag(0000015)
	B19200 = CFlag(0000016)
	B38400 = CFlag(0000017)

	CSIZE = CFlag(0000060)
	CS5   = CFlag(0000000)
	CS6   = CFlag(0000020)
	CS7   = CFlag(0000040)
	CS8   = CFlag(0000060)

	CSTOPB = CFlag(0000100)
	CREAD  = CFlag(0000200)
	PARENB = CFlag(0000400)
	PARODD = CFlag(0001000)
	HUPCL  = CFlag(0002000)
	CLOCAL = CFlag(0004000)

	CBAUDEX = CFlag(0010000)
	BOTHER  = CFlag(0010000)

	B57600   = CFlag(0010001)
	B115200  = CFlag(0010002)
	B230400  = CFlag(0010003)
	B460800  = CFlag(0010004)
	B500000  = CFlag(0010005)
	B576000  = CFlag(0010006)
	B921600  = CFlag(0010007)
	B1000000 = CFlag(0010010)
	B1152000 = CFlag(0010011)
	B1500000 = CFlag(0010012)
	B2000000 = CFlag(0010013)
	B2500000 = CFlag(0010014)
	B3000000 = CFlag(0010015)
	B3500000 = CFlag(0010016)
	B4000000 = CFlag(0010017)

	// CRTSCTS enables RTS/CTS hardware flow control, the default for
	// OpenModem since most AT modems expect it on a wired link.
	CRTSCTS = CFlag(020000000000)
)

type LFlag uint32

// Local flags MakeRaw clears, taking the line fully out of cooked/echo
// mode so the transceiver sees raw command/response bytes.
const (
	ISIG   = LFlag(0000001)
	ICANON = LFlag(0000002)
	ECHO   = LFlag(0000010)
	ECHONL = LFlag(0000100)
	IEXTEN = LFlag(0100000)
)

type Queue uint32

const (
	TCIFLUSH = Queue(iota)
	TCOFLUSH
	TCIOFLUSH
)

type Action int

const (
	// TCSANOW applies a termios change immediately.
	TCSANOW = Action(iota)
	TCSADRAIN
	TCSAFLUSH
)

type ModemLine int

// Modem status bits reported by GetModemLines/EnableModemLines. These are
// the lines a directly attached AT modem actually drives: DTR/RTS are
// asserted by the host, CTS/DSR/CAR(DCD)/RNG(RI) are read back to tell a
// present, registered, ringing modem from a dead line.
const (
	TIOCM_LE  = ModemLine(0x001)
	TIOCM_DTR = ModemLine(0x002)
	TIOCM_RTS = ModemLine(0x004)
	TIOCM_CTS = ModemLine(0x020)
	TIOCM_CAR = ModemLine(0x040)
	TIOCM_CD  = TIOCM_CAR
	TIOCM_RNG = ModemLine(0x080)
	TIOCM_RI  = TIOCM_RNG
	TIOCM_DSR = ModemLine(0x100)
)

var modemLineStrings = map[ModemLine]string{
	TIOCM_LE:  "LE",
	TIOCM_DTR: "DTR",
	TIOCM_RTS: "RTS",
	TIOCM_CTS: "CTS",
	TIOCM_CAR: "CAR",
	TIOCM_RNG: "RNG",
	TIOCM_DSR: "DSR",
}

// String renders the set bits in line, in ascending bit order, e.g.
// "[DTR|RTS|CTS]".
func (m ModemLine) String() string {
	flags := make([]string, 0, len(modemLineStrings))
	for i := 1; i <= int(TIOCM_DSR); i <<= 1 {
		if int(m)&i == 0 {
			continue
		}
		if flag, ok := modemLineStrings[ModemLine(i)]; ok {
			flags = append(flags, flag)
		} else {
			flags = append(flags, fmt.Sprintf("Unknown(%x)", i))
		}
	}
	return fmt.Sprintf("[%s]", strings.Join(flags, "|"))
}

// Discipline identifies a line discipline (Termios.Line). The AT-modem
// surface never switches away from N_TTY, the zero value.
type Discipline byte

// Winsize mirrors struct winsize (<asm-generic/termios.h>), used only to
// size the PTY slave OpenPTY hands to the fake-modem responder.
type Winsize struct {
	Row, Col, Xpixel, Ypixel uint16
}

type Port struct {
	closed  atomic.Bool
	f       int
	timeout time.Duration // < 0 blocks indefinitely, matching attransceiver's own timeout convention
}

// Open opens name as a modem control terminal (O_NOCTTY, so the process
// does not acquire it as a controlling tty) with exclusive read/write
// access. readTimeout bounds Read the way attransceiver timeouts do:
// negative blocks indefinitely.
func Open(name string, readTimeout time.Duration) (*Port, error) {
	fd, err := syscall.Open(name, syscall.O_RDWR|syscall.O_NOCTTY|syscall.SYS_SYNC, 0)
	if err != nil {
		return nil, wrapErr("open "+name, err)
	}
	return &Port{f: fd, timeout: readTimeout}, nil
}

func (p *Port) Write(data []byte) (n int, err error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	n, err = syscall.Write(p.f, data)
	return n, wrapErr("write", err)
}

func (p *Port) readTimeout(data []byte, timeout time.Duration) (int, error) {
	if err := poll.WaitInput(p.f, timeout); err != nil {
		return 0, wrapErr("poll", err)
	}
	n, err := syscall.Read(p.f, data)
	return n, wrapErr("read", err)
}

func (p *Port) Read(data []byte) (n int, err error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	if p.timeout > -1 {
		return p.readTimeout(data, p.timeout)
	}
	n, err = syscall.Read(p.f, data)
	return n, wrapErr("read", err)
}

func (p *Port) Close() error {
	if !p.closed.Swap(true) {
		fd := p.f
		p.f = -1
		return wrapErr("close", syscall.Close(fd))
	}
	return ErrClosed
}

func (p *Port) GetAttr() (*Termios, error) {
	attrs := &Termios{}
	if err := ioctl.Ioctl(uintptr(p.f), tcgets, uintptr(unsafe.Pointer(attrs))); err != nil {
		return nil, wrapErr("TCGETS", err)
	}
	return attrs, nil
}

func (p *Port) SetAttr(when Action, attrs *Termios) error {
	return wrapErr("TCSETS", ioctl.Ioctl(uintptr(p.f), tcsets+uintptr(when), uintptr(unsafe.Pointer(attrs))))
}

// MakeRaw puts the Port into raw mode: no line editing, no signal
// generation, no input/output translation, 8-bit characters.
func (p *Port) MakeRaw() error {
	attrs, err := p.GetAttr()
	if err != nil {
		return err
	}
	attrs.MakeRaw()
	return p.SetAttr(TCSANOW, attrs)
}

// Flush discards data written but not yet transmitted, or received but not
// yet read, depending on queue.
func (p *Port) Flush(queue Queue) error {
	return wrapErr("TCFLSH", ioctl.Ioctl(uintptr(p.f), tcflsh, uintptr(queue)))
}

// GetModemLines reports which of the DTR/RTS/CTS/DCD/RI/DSR lines are
// currently asserted.
func (p *Port) GetModemLines() (ModemLine, error) {
	var line ModemLine
	err := ioctl.Ioctl(uintptr(p.f), tiocmget, uintptr(unsafe.Pointer(&line)))
	return line, wrapErr("TIOCMGET", err)
}

// EnableModemLines asserts the given modem control bits in addition to
// whatever is already set.
func (p *Port) EnableModemLines(line ModemLine) error {
	return wrapErr("TIOCMBIS", ioctl.Ioctl(uintptr(p.f), tiocmbis, uintptr(unsafe.Pointer(&line))))
}

// SetWinSize sets the terminal window size, used by OpenPTY when the slave
// end is handed to a responder that expects one (e.g. a bufio.Scanner-based
// line reader has no use for it, but a real getty-style consumer would).
func (p *Port) SetWinSize(w *Winsize) error {
	return wrapErr("TIOCSWINSZ", ioctl.Ioctl(uintptr(p.f), tiocswinsz, uintptr(unsafe.Pointer(w))))
}

// SetLockPT locks or unlocks the slave of a /dev/ptmx master, per the
// unlockpt(3) contract: the slave cannot be opened until this clears the
// lock with locked=false.
func (p *Port) SetLockPT(locked bool) error {
	var v int32
	if locked {
		v = 1
	}
	return wrapErr("TIOCSPTLCK", ioctl.Ioctl(uintptr(p.f), tiocsptlck, uintptr(unsafe.Pointer(&v))))
}

// GetPTPeer opens the slave of a /dev/ptmx master directly, per ptsname(3)
// semantics, without needing to resolve or open a /dev/pts/N path. flags
// are POSIX open(2) flags (e.g. syscall.O_RDWR|syscall.O_NOCTTY); the
// kernel returns the new descriptor as the ioctl's result, so this bypasses
// the generic Ioctl helper to read it.
func (p *Port) GetPTPeer(flags int) (*Port, error) {
	r1, _, errno := syscall.Syscall(syscall.SYS_IOCTL, uintptr(p.f), tiocgptpeer, uintptr(flags))
	if errno != 0 {
		return nil, wrapErr("TIOCGPTPEER", errno)
	}
	return &Port{f: int(r1), timeout: p.timeout}, nil
}

func (attrs *Termios) MakeRaw() {
	attrs.Iflag &= ^(IGNBRK | BRKINT | PARMRK | ISTRIP | INLCR | IGNCR | ICRNL | IXON)
	attrs.Oflag &= ^(OPOST)
	attrs.Lflag &= ^(ECHO | ECHONL | ICANON | ISIG | IEXTEN)
	attrs.Cflag &= ^(CSIZE | PARENB)
	attrs.Cflag |= CS8
}

func (attrs *Termios) SetSpeed(speed CFlag) {
	attrs.Cflag &= ^(CBAUD)
	attrs.Cflag |= speed
}
