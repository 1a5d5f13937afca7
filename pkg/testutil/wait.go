// Package testutil provides a scripted Grapevine service and helpers for
// exercising clients in tests.
package testutil

import (
	"fmt"
	"testing"
	"time"
)

// WaitFor polls condition until it reports true or timeout passes. The
// returned error names the condition that never came about.
func WaitFor(t *testing.T, description string, timeout time.Duration, condition func() bool) error {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("condition '%s' not met within %v", description, timeout)
}
