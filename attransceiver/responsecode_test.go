package attransceiver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResponseCodeTextAndNumeric(t *testing.T) {
	cases := []struct {
		code    Code
		text    string
		numeric int
		hasNum  bool
	}{
		{CodeOK, "OK", 0, true},
		{CodeConnect, "CONNECT", 1, true},
		{CodeRing, "RING", 2, true},
		{CodeNoCarrier, "NO CARRIER", 3, true},
		{CodeError, "ERROR", 4, true},
		{CodeNoDialtone, "NO DIALTONE", 6, true},
		{CodeBusy, "BUSY", 7, true},
		{CodeNoAnswer, "NO ANSWER", 8, true},
		{CodeConnectRate, "CONNECT", 9, true},
		{CodeNotSupported, "NOT SUPPORTED", 0, false},
		{CodeInvalidCommandLine, "INVALID COMMAND LINE", 0, false},
		{CodeCR, "CR", 0, false},
		{CodeSimDrop, "SIM DROP", 0, false},
		{CodeSendOK, "SEND OK", 0, false},
		{CodeSendFail, "SEND FAIL", 0, false},
		{CodeAborted, "ABORTED", 0, false},
	}
	for _, c := range cases {
		require.Equal(t, c.text, c.code.String())
		n, ok := c.code.Numeric()
		require.Equal(t, c.hasNum, ok)
		if ok {
			require.Equal(t, c.numeric, n)
		}
	}
}

func TestNotSupportedAndNoAnswerAreDistinct(t *testing.T) {
	require.NotEqual(t, CodeNotSupported, CodeNoAnswer)
	require.Equal(t, "NOT SUPPORTED", CodeNotSupported.String())
	require.Equal(t, "NO ANSWER", CodeNoAnswer.String())
}

func TestCodeFromTextLongestMatchFirst(t *testing.T) {
	c, n, ok := codeFromText("NO CARRIER")
	require.True(t, ok)
	require.Equal(t, CodeNoCarrier, c)
	require.Equal(t, len("NO CARRIER"), n)
}
