package attransceiver

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func noopWrite([]byte) (int, error) { return 0, nil }

func TestSimpleOKScenario(t *testing.T) {
	tr, err := Initialize(make([]byte, 64), noopWrite)
	require.NoError(t, err)

	_, err = tr.Feed([]byte("AT\r\n"))
	require.NoError(t, err)
	_, err = tr.Feed([]byte("\r\nOK\r\n"))
	require.NoError(t, err)

	// Consume the echoed command line raw, as a caller bridging into the
	// tokenizer after writing would.
	err = tr.SkipLine(time.Second)
	require.NoError(t, err)

	code, rate, err := tr.ReadCode(time.Second)
	require.NoError(t, err)
	require.Equal(t, CodeOK, code)
	require.Equal(t, uint32(0), rate)
	require.True(t, tr.IsStartOfLine())
}

func TestURCMidTrafficScenario(t *testing.T) {
	tr, err := Initialize(make([]byte, 256), noopWrite)
	require.NoError(t, err)

	_, err = tr.Feed([]byte("\r\n+CSQ: 21,99\r\n\r\nOK\r\n\r\n+CREG: 1,2\r\n"))
	require.NoError(t, err)

	require.NoError(t, tr.ReadCommand("CSQ", time.Second))
	v1, err := tr.ReadI32(10, time.Second)
	require.NoError(t, err)
	require.Equal(t, int32(21), v1)
	v2, err := tr.ReadI32(10, time.Second)
	require.NoError(t, err)
	require.Equal(t, int32(99), v2)

	code, _, err := tr.ReadCode(time.Second)
	require.NoError(t, err)
	require.Equal(t, CodeOK, code)

	// A second "solicited session" (standing in for the URC listener
	// picking up after the lock changes hands) reads the URC.
	require.NoError(t, tr.ReadCommand("CREG", time.Second))
	u1, err := tr.ReadI32(10, time.Second)
	require.NoError(t, err)
	require.Equal(t, int32(1), u1)
	u2, err := tr.ReadI32(10, time.Second)
	require.NoError(t, err)
	require.Equal(t, int32(2), u2)
}

func TestHexArgumentRoundTripScenario(t *testing.T) {
	tr, err := Initialize(make([]byte, 128), noopWrite)
	require.NoError(t, err)
	_, err = tr.Feed([]byte("\r\n+IPD: \"48656C6C6F\"\r\nOK\r\n"))
	require.NoError(t, err)

	require.NoError(t, tr.ReadCommand("IPD", time.Second))
	dst := make([]byte, 10)
	n, err := tr.ReadHexString(dst, time.Second)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, []byte{0x48, 0x65, 0x6C, 0x6C, 0x6F}, dst[:n])
}

func TestTruncationScenario(t *testing.T) {
	tr, err := Initialize(make([]byte, 64), noopWrite)
	require.NoError(t, err)
	_, err = tr.Feed([]byte("\r\n+VERYLONGNAME: 1\r\n"))
	require.NoError(t, err)

	buf := make([]byte, 5)
	n, err := tr.ReadCommandAny(buf, time.Second)
	require.ErrorIs(t, err, ErrTruncated)
	require.Equal(t, "VERY", string(buf[:n]))
	require.Equal(t, byte(0), buf[n])

	v, err := tr.ReadI32(10, time.Second)
	require.NoError(t, err)
	require.Equal(t, int32(1), v)
}

func TestReadCommandAnyLimitOneIsEmptyButAdvances(t *testing.T) {
	tr, err := Initialize(make([]byte, 64), noopWrite)
	require.NoError(t, err)
	_, err = tr.Feed([]byte("+FOO:1\r\n"))
	require.NoError(t, err)

	buf := make([]byte, 1)
	n, err := tr.ReadCommandAny(buf, time.Second)
	require.ErrorIs(t, err, ErrTruncated)
	require.Equal(t, 0, n)

	v, err := tr.ReadI32(10, time.Second)
	require.NoError(t, err)
	require.Equal(t, int32(1), v)
}

func TestReadCommandMismatchConsumesThroughColon(t *testing.T) {
	tr, err := Initialize(make([]byte, 64), noopWrite)
	require.NoError(t, err)
	_, err = tr.Feed([]byte("+FOO:1\r\n"))
	require.NoError(t, err)

	err = tr.ReadCommand("BAR", time.Second)
	require.ErrorIs(t, err, ErrUnexpectedContent)

	v, err := tr.ReadI32(10, time.Second)
	require.NoError(t, err)
	require.Equal(t, int32(1), v)
}

func TestReadCommandRejectsMnemonicHavingExpectedAsPrefix(t *testing.T) {
	tr, err := Initialize(make([]byte, 64), noopWrite)
	require.NoError(t, err)
	_, err = tr.Feed([]byte("+CREGXYZ:1\r\n"))
	require.NoError(t, err)

	// "CREGXYZ" must not be accepted as a match for "CREG" just because it
	// starts with it.
	err = tr.ReadCommand("CREG", time.Second)
	require.ErrorIs(t, err, ErrUnexpectedContent)

	v, err := tr.ReadI32(10, time.Second)
	require.NoError(t, err)
	require.Equal(t, int32(1), v)
}

func TestReadArgumentTrimsWhitespacePreservingInterior(t *testing.T) {
	tr, err := Initialize(make([]byte, 64), noopWrite)
	require.NoError(t, err)
	_, err = tr.Feed([]byte("  a b  ,next\r\n"))
	require.NoError(t, err)

	buf := make([]byte, 32)
	n, err := tr.ReadArgument(buf, time.Second)
	require.NoError(t, err)
	require.Equal(t, "a b", string(buf[:n]))
	require.False(t, tr.IsStartOfLine())
}

func TestReadArgumentSetsStartOfLineOnS4(t *testing.T) {
	tr, err := Initialize(make([]byte, 64), noopWrite)
	require.NoError(t, err)
	_, err = tr.Feed([]byte("value\r\n"))
	require.NoError(t, err)

	buf := make([]byte, 32)
	_, err = tr.ReadArgument(buf, time.Second)
	require.NoError(t, err)
	require.True(t, tr.IsStartOfLine())
}

func TestReadHexStringOddDigitsIsInvalidParam(t *testing.T) {
	tr, err := Initialize(make([]byte, 64), noopWrite)
	require.NoError(t, err)
	_, err = tr.Feed([]byte(`"ABC"` + "\r\n"))
	require.NoError(t, err)

	dst := make([]byte, 4)
	_, err = tr.ReadHexString(dst, time.Second)
	require.ErrorIs(t, err, ErrInvalidParam)
}

func TestReadHexStringNonHexIsUnexpectedContent(t *testing.T) {
	tr, err := Initialize(make([]byte, 64), noopWrite)
	require.NoError(t, err)
	_, err = tr.Feed([]byte(`"ZZ"` + "\r\n"))
	require.NoError(t, err)

	dst := make([]byte, 4)
	_, err = tr.ReadHexString(dst, time.Second)
	require.ErrorIs(t, err, ErrUnexpectedContent)
}

func TestIntegerOverflowIsOutOfResources(t *testing.T) {
	tr, err := Initialize(make([]byte, 64), noopWrite)
	require.NoError(t, err)
	_, err = tr.Feed([]byte("99999\r\n"))
	require.NoError(t, err)

	_, err = tr.ReadI8(10, time.Second)
	require.ErrorIs(t, err, ErrOutOfResources)
}

func TestReadI32HexAndOctalPrefixes(t *testing.T) {
	tr, err := Initialize(make([]byte, 64), noopWrite)
	require.NoError(t, err)
	_, err = tr.Feed([]byte("0x1A,017\r\n"))
	require.NoError(t, err)

	v1, err := tr.ReadI32(0, time.Second)
	require.NoError(t, err)
	require.Equal(t, int32(0x1A), v1)

	v2, err := tr.ReadI32(0, time.Second)
	require.NoError(t, err)
	require.Equal(t, int32(017), v2)
}

func TestCheckEndOfLineDoesNotConsume(t *testing.T) {
	tr, err := Initialize(make([]byte, 64), noopWrite)
	require.NoError(t, err)
	_, err = tr.Feed([]byte("\r\nOK\r\n"))
	require.NoError(t, err)

	eol, err := tr.CheckEndOfLine(time.Second)
	require.NoError(t, err)
	require.True(t, eol)

	code, _, err := tr.ReadCode(time.Second)
	require.NoError(t, err)
	require.Equal(t, CodeOK, code)
}

func TestTimeoutWithZeroLengthReadIsImmediatelyOK(t *testing.T) {
	tr, err := Initialize(make([]byte, 8), noopWrite)
	require.NoError(t, err)
	n, err := tr.Read(nil, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestReadTimeoutReturnsPartialProgress(t *testing.T) {
	tr, err := Initialize(make([]byte, 8), noopWrite)
	require.NoError(t, err)
	_, err = tr.Feed([]byte("ab"))
	require.NoError(t, err)

	dst := make([]byte, 5)
	n, err := tr.Read(dst, 10*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	require.Equal(t, 2, n)
	require.Equal(t, "ab", string(dst[:n]))
}

func TestRingOverflowDuringFeedIsRecoverable(t *testing.T) {
	tr, err := Initialize(make([]byte, 4), noopWrite)
	require.NoError(t, err)
	n, err := tr.Feed([]byte("abcdef"))
	require.ErrorIs(t, err, ErrOutOfResources)
	require.Equal(t, 4, n)

	dst := make([]byte, 4)
	got, err := tr.Read(dst, time.Second)
	require.NoError(t, err)
	require.Equal(t, 4, got)
	require.Equal(t, "abcd", string(dst))

	// feeder retries the remainder once space frees up
	n2, err := tr.Feed([]byte("ef"))
	require.NoError(t, err)
	require.Equal(t, 2, n2)
}

func TestFeedConcurrentWithLockedReader(t *testing.T) {
	tr, err := Initialize(make([]byte, 64), noopWrite)
	require.NoError(t, err)

	require.NoError(t, tr.Lock())
	total := 2000
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; i++ {
			for {
				if n, _ := tr.Feed([]byte{'x'}); n == 1 {
					break
				}
			}
		}
	}()

	received := 0
	// Read returns only once len(dst) bytes arrived, so dst's size must
	// divide total or the last Read would time out on a short remainder.
	dst := make([]byte, 16)
	for received < total {
		n, err := tr.Read(dst, time.Second)
		require.NoError(t, err)
		received += n
	}
	<-done
	require.Equal(t, total, received)
	require.NoError(t, tr.Unlock())
}

func TestTwoTasksContendingOnLockNeverBothSucceed(t *testing.T) {
	tr, err := Initialize(make([]byte, 16), noopWrite)
	require.NoError(t, err)
	require.NoError(t, tr.Lock())

	var wg sync.WaitGroup
	wg.Add(1)
	gotLock := make(chan bool, 1)
	go func() {
		defer wg.Done()
		err := tr.TryLock(30 * time.Millisecond)
		gotLock <- err == nil
	}()

	select {
	case result := <-gotLock:
		require.False(t, result, "second locker must not succeed while first holds the lock")
	case <-time.After(time.Second):
		t.Fatal("second locker never returned")
	}
	wg.Wait()
	require.NoError(t, tr.Unlock())
}
