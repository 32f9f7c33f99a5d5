package attransceiver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitializeRejectsEmptyBuffer(t *testing.T) {
	_, err := Initialize(nil, noopWrite)
	require.ErrorIs(t, err, ErrInvalidParam)
}

func TestInitializeRejectsNilWriteFunc(t *testing.T) {
	_, err := Initialize(make([]byte, 8), nil)
	require.ErrorIs(t, err, ErrInvalidParam)
}

func TestStartOfLineTrueAfterInitialize(t *testing.T) {
	tr, err := Initialize(make([]byte, 8), noopWrite)
	require.NoError(t, err)
	require.True(t, tr.IsStartOfLine())
}

func TestDeinitializeThenOperationsFail(t *testing.T) {
	tr, err := Initialize(make([]byte, 8), noopWrite)
	require.NoError(t, err)
	require.NoError(t, tr.Deinitialize())

	_, err = tr.Feed([]byte("x"))
	require.ErrorIs(t, err, ErrUninitialized)

	err = tr.Lock()
	require.ErrorIs(t, err, ErrUninitialized)

	_, err = tr.Read(make([]byte, 1), time.Millisecond)
	require.ErrorIs(t, err, ErrUninitialized)
}

func TestDeinitializeTwiceErrors(t *testing.T) {
	tr, err := Initialize(make([]byte, 8), noopWrite)
	require.NoError(t, err)
	require.NoError(t, tr.Deinitialize())
	require.ErrorIs(t, tr.Deinitialize(), ErrUninitialized)
}

func TestPendingReportsRingAvailability(t *testing.T) {
	tr, err := Initialize(make([]byte, 8), noopWrite)
	require.NoError(t, err)
	require.Equal(t, 0, tr.Pending())
	_, err = tr.Feed([]byte("ab"))
	require.NoError(t, err)
	require.Equal(t, 2, tr.Pending())
}
