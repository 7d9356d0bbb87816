package sse

import (
	"testing"

	"go.uber.org/goleak"
)

// Every broker started by a test must have stopped its loop by the end.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
