package protocol

import (
	"fmt"
	"strings"

	"pkg.jsn.cam/wordmill/pkg/wordmill"
)

// Hello is the one line a worker sends immediately after connecting, before
// any command arrives: "hello <workerID> <version>". The controller uses it to
// reject incompatible workers up front.
type Hello struct {
	WorkerID string
	Version  string
}

const helloWord = "hello"

// Format encodes the hello as a single wire line (without the terminator).
func (h Hello) Format() string {
	return strings.Join([]string{helloWord, h.WorkerID, h.Version}, " ")
}

// ParseHello decodes a hello line.
func ParseHello(line string) (Hello, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 || fields[0] != helloWord {
		return Hello{}, fmt.Errorf("%w: expected %q line, got %q",
			wordmill.ErrMalformedCommand, helloWord, line)
	}

	return Hello{WorkerID: fields[1], Version: fields[2]}, nil
}
