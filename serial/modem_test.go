package serial

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestOpenPTYConfiguresAndTransfersRaw exercises the whole kept termios/PTY
// surface against a real pseudoterminal pair: lock/peer handshake, raw mode,
// attribute round-trip, modem-line control, and a byte transferred
// end-to-end.
func TestOpenPTYConfiguresAndTransfersRaw(t *testing.T) {
	master, slave, err := OpenPTY(nil, &Winsize{Row: 24, Col: 80})
	require.NoError(t, err)
	defer master.Close()
	defer slave.Close()

	require.NoError(t, slave.MakeRaw())

	attrs, err := slave.GetAttr()
	require.NoError(t, err)
	require.Equal(t, LFlag(0), attrs.Lflag&ECHO)
	require.Equal(t, LFlag(0), attrs.Lflag&ICANON)

	require.NoError(t, master.Flush(TCIOFLUSH))

	require.NoError(t, master.EnableModemLines(TIOCM_DTR|TIOCM_RTS))
	lines, err := master.GetModemLines()
	require.NoError(t, err)
	require.NotEqual(t, "[]", lines.String())

	master.timeout = 2 * time.Second
	_, err = slave.Write([]byte("ATZ\r\n"))
	require.NoError(t, err)

	buf := make([]byte, 5)
	n, err := master.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "ATZ\r\n", string(buf[:n]))
}

func TestModemLineStringFormatsSetBits(t *testing.T) {
	require.Equal(t, "[DTR|RTS]", (TIOCM_DTR | TIOCM_RTS).String())
	require.Equal(t, "[]", ModemLine(0).String())
}
