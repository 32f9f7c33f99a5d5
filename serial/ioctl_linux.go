package serial

import (
	ioctl "github.com/daedaluz/goioctl"
)

// Raw ioctl request numbers for the termios/modem-line/PTY surface OpenModem
// and OpenPTY actually drive. Trimmed from the full Linux tty ioctl set to
// the handful a point-to-point AT modem link (and the PTY stand-in for one)
// needs: get/set termios, flush, DTR/RTS control, and pseudoterminal setup.
var (
	tcgets = uintptr(0x5401)
	tcsets = uintptr(0x5402)

	tcflsh = uintptr(0x540B)

	tiocmget = uintptr(0x5415) // get status
	tiocmbis = uintptr(0x5416) // set indicated bits

	tiocswinsz = uintptr(0x5414)

	tiocsptlck  = ioctl.IOW('T', 0x31, 4)
	tiocgptpeer = ioctl.IO('T', 0x41)
)
