package synth

import (
	"strings"

	"github.com/codeforge/judge-harness/internal/domain"
)

// Driver exit codes.
const (
	ExitRuntime = 1
	ExitParse   = 3
	ExitCall    = 4
)

var stderrTags = []struct {
	tag   string
	class domain.FailureClass
}{
	{"[harness:parse]", domain.FailureParse},
	{"[harness:call]", domain.FailureCall},
	{"[harness:runtime]", domain.FailureRuntime},
}

// ClassifyStderr finds the driver's failure tag in stderr and returns its
// class and message. Untagged output yields FailureNone.
func ClassifyStderr(stderr string) (domain.FailureClass, string) {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		for _, t := range stderrTags {
			if rest, ok := strings.CutPrefix(line, t.tag); ok {
				return t.class, strings.TrimSpace(rest)
			}
		}
	}
	return domain.FailureNone, ""
}
