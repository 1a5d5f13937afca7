// wire/common.go
package wire

import (
	"time"

	"github.com/google/uuid"
)

// NewRef returns a fresh correlation token for an outbound request.
// The service treats refs as opaque and echoes them back unchanged.
func NewRef() string {
	return uuid.NewString()
}

// TimeNow is a wrapper for time.Now, useful for testing if time needs to be mocked.
var TimeNow = time.Now

// FormatSentAt renders a tell timestamp the way the service expects:
// RFC 3339 in UTC, whole seconds.
func FormatSentAt(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
