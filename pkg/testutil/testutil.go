// Package testutil provides testing utilities for Meridian
package testutil

import (
	"context"
	"encoding/binary"
	"math/rand"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// AssertEventually asserts that a condition becomes true within the specified timeout.
// It checks the condition every 10ms until it succeeds or the timeout expires.
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// CompressiblePayload builds a decompressed column payload of n bytes:
// a non-negative leading encoding id followed by highly repetitive data
// that every codec shrinks.
func CompressiblePayload(encodingID int32, n int) []byte {
	if n < 4 {
		n = 4
	}
	b := make([]byte, n)
	binary.LittleEndian.PutUint32(b, uint32(encodingID))
	for i := 4; i < n; i++ {
		b[i] = byte(i % 7)
	}
	return b
}

// RandomPayload builds a decompressed column payload of n bytes filled
// with pseudo-random data that codecs cannot shrink. The seed keeps
// failures reproducible.
func RandomPayload(encodingID int32, n int, seed int64) []byte {
	if n < 4 {
		n = 4
	}
	b := make([]byte, n)
	binary.LittleEndian.PutUint32(b, uint32(encodingID))
	r := rand.New(rand.NewSource(seed))
	r.Read(b[4:])
	return b
}
