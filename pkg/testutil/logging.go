package testutil

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

func init() {
	logrus.SetLevel(logrus.TraceLevel)

	if !isVerbose(os.Args) {
		logrus.StandardLogger().Out = io.Discard
	}
}

func isVerbose(args []string) bool {
	for _, arg := range args {
		if arg == "-test.v" || arg == "-test.v=true" || strings.HasPrefix(arg, "-test.v=test2json") {
			return true
		}
	}
	return false
}

// CaptureLogs sends the standard logger's output to a buffer until reset is
// called.
func CaptureLogs() (buf *bytes.Buffer, reset func()) {
	buf = &bytes.Buffer{}
	originalLogOutput := logrus.StandardLogger().Out
	logrus.StandardLogger().SetOutput(buf)
	return buf, func() {
		logrus.StandardLogger().SetOutput(originalLogOutput)
	}
}
