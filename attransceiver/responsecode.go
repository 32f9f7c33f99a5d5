package attransceiver

// Code enumerates the AT response codes of ITU-T V.250 that ReadCode
// recognizes. CodeConnectRate is a distinct entry from CodeConnect because
// the wire table lists `CONNECT<rate>` as its own numeric code (9); both
// share the text "CONNECT".
//
// NOT SUPPORTED and NO ANSWER are deliberately kept as two distinct codes:
// the original implementation this package is descended from names a
// constant after NOT SUPPORTED but documents it as NO ANSWER, which is a
// copy-paste defect. That defect is not reproduced here.
type Code int

const (
	CodeOK Code = iota
	CodeConnect
	CodeRing
	CodeNoCarrier
	CodeError
	CodeNoDialtone
	CodeBusy
	CodeNoAnswer
	CodeConnectRate
	CodeNotSupported
	CodeInvalidCommandLine
	CodeCR
	CodeSimDrop
	CodeSendOK
	CodeSendFail
	CodeAborted
)

type codeInfo struct {
	text    string
	numeric int // -1 when the code has no V.250 numeric form
}

var codeTable = map[Code]codeInfo{
	CodeOK:                 {"OK", 0},
	CodeConnect:             {"CONNECT", 1},
	CodeRing:                {"RING", 2},
	CodeNoCarrier:           {"NO CARRIER", 3},
	CodeError:               {"ERROR", 4},
	CodeNoDialtone:          {"NO DIALTONE", 6},
	CodeBusy:                {"BUSY", 7},
	CodeNoAnswer:            {"NO ANSWER", 8},
	CodeConnectRate:         {"CONNECT", 9},
	CodeNotSupported:        {"NOT SUPPORTED", -1},
	CodeInvalidCommandLine:  {"INVALID COMMAND LINE", -1},
	CodeCR:                  {"CR", -1},
	CodeSimDrop:             {"SIM DROP", -1},
	CodeSendOK:              {"SEND OK", -1},
	CodeSendFail:            {"SEND FAIL", -1},
	CodeAborted:             {"ABORTED", -1},
}

// codesByText lists the plain-text codes in the order codeFromText tries
// them; the first whose text is a prefix of the input wins. No text in the
// list is a prefix of another, so the order does not change which code
// matches. CONNECT<rate> is not listed: it shares the literal "CONNECT"
// text, and ReadCode disambiguates by checking for trailing digits itself.
var codesByText = []Code{
	CodeInvalidCommandLine,
	CodeNoDialtone,
	CodeNoCarrier,
	CodeNoAnswer,
	CodeNotSupported,
	CodeSendFail,
	CodeSimDrop,
	CodeSendOK,
	CodeAborted,
	CodeConnect,
	CodeRing,
	CodeError,
	CodeBusy,
	CodeCR,
	CodeOK,
}

// String returns the canonical text form of the code.
func (c Code) String() string {
	if info, ok := codeTable[c]; ok {
		return info.text
	}
	return "UNKNOWN"
}

// Numeric returns the V.250 numeric form of the code, when one is defined.
func (c Code) Numeric() (value int, ok bool) {
	info, found := codeTable[c]
	if !found || info.numeric < 0 {
		return 0, false
	}
	return info.numeric, true
}

// codeFromText matches the longest known code text at the start of s,
// returning the matched code and the number of bytes consumed.
func codeFromText(s string) (code Code, consumed int, ok bool) {
	for _, c := range codesByText {
		text := codeTable[c].text
		if len(s) >= len(text) && s[:len(text)] == text {
			return c, len(text), true
		}
	}
	return 0, 0, false
}
