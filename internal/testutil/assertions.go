package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertLogged checks that some single line of text-handler output contains
// the message and every attribute fragment, e.g. `step=250`.
func AssertLogged(t *testing.T, output, msg string, attrs ...string) {
	t.Helper()

	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, msg) {
			continue
		}
		matched := true
		for _, a := range attrs {
			if !strings.Contains(line, a) {
				matched = false
				break
			}
		}
		if matched {
			return
		}
	}
	require.Failf(t, "log line not found", "expected a line with %q and %v in:\n%s", msg, attrs, output)
}
