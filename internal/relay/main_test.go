package relay_test

import (
	"testing"

	"go.uber.org/goleak"
)

// The relay must never leave goroutines behind, whatever way a stream ends.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
