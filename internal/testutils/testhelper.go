package testutils

import (
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// TestHelper bundles a debug-level logger whose entries are captured for
// assertions.
type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
	Hook   *logtest.Hook
}

func NewTestHelper(t *testing.T) *TestHelper {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return &TestHelper{T: t, Logger: logger, Hook: hook}
}

// HasLog reports whether an entry at level contains msg.
func (h *TestHelper) HasLog(level logrus.Level, msg string) bool {
	for _, e := range h.Hook.AllEntries() {
		if e.Level == level && strings.Contains(e.Message, msg) {
			return true
		}
	}
	return false
}

// RequireLog waits briefly for an entry logged from another goroutine.
func (h *TestHelper) RequireLog(level logrus.Level, msg string) {
	h.T.Helper()
	require.Eventually(h.T, func() bool { return h.HasLog(level, msg) }, time.Second, 5*time.Millisecond,
		"expected %s log containing %q", level, msg)
}
