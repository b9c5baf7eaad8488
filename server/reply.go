package server

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/raniellyferreira/inmemdb/protocol"
)

var (
	errWrongType     = protocol.Error("WRONGTYPE Operation against a key holding the wrong kind of value")
	errPubSubContext = protocol.Error("ERR only (P)SUBSCRIBE / (P)UNSUBSCRIBE / PING / QUIT allowed in this context")
	errNestedMulti   = protocol.Error("ERR MULTI calls can not be nested")
	errExecNoMulti   = protocol.Error("ERR EXEC without MULTI")
	errReadOnly      = protocol.Error("READONLY You can't write against a read only slave")
	errInvalidDB     = protocol.Error("ERR invalid DB index")
	errNotInteger    = protocol.Error("ERR value is not an integer or out of range")
	errNotFloat      = protocol.Error("ERR value is not a valid float")
	errSyntax        = protocol.Error("ERR syntax error")
	errNoSuchKey     = protocol.Error("ERR no such key")
	errOutOfRange    = protocol.Error("ERR index out of range")
	errBitOffset     = protocol.Error("ERR bit offset is not an integer or out of range")
	errBitValue      = protocol.Error("ERR bit is not an integer or out of range")
	errNoScript      = protocol.Error("NOSCRIPT No matching script. Please use EVAL.")
	errNotInScript   = protocol.Error("ERR This Redis command is not allowed from scripts")
	errOverflow      = protocol.Error("ERR increment or decrement would overflow")
)

func errArity(name string) protocol.Value {
	return protocol.Errorf("ERR wrong number of arguments for '%s' command", strings.ToLower(name))
}

func errUnknownCommand(name string) protocol.Value {
	return protocol.Errorf("ERR unknown command '%s'", strings.ToLower(name))
}

func errInvalidExpire(name string) protocol.Value {
	return protocol.Errorf("ERR invalid expire time in '%s' command", strings.ToLower(name))
}

// expiryFrom returns now + n*unit. It reports false when n*unit does not fit
// in a time.Duration.
func expiryFrom(now time.Time, n int64, unit time.Duration) (time.Time, bool) {
	limit := int64(math.MaxInt64 / unit)
	if n > limit || n < -limit {
		return time.Time{}, false
	}
	return now.Add(time.Duration(n) * unit), true
}

func parseInt(b []byte) (int64, bool) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	return n, err == nil
}

func parseFloat(b []byte) (float64, bool) {
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// formatFloat renders a score in its shortest plain decimal form ("1",
// "2.5", "1000000"). Magnitudes outside [1e-5, 1e17) use exponent notation.
func formatFloat(f float64) string {
	if math.IsInf(f, 0) {
		if f > 0 {
			return "inf"
		}
		return "-inf"
	}
	if abs := math.Abs(f); abs != 0 && (abs < 1e-5 || abs >= 1e17) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func stringsOf(args [][]byte) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = string(a)
	}
	return out
}

func bytesOf(items []string) [][]byte {
	out := make([][]byte, len(items))
	for i, s := range items {
		out[i] = []byte(s)
	}
	return out
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
