// ABOUTME: Integration tests for sync daemon scheduling
// ABOUTME: Runs the daemon loop against in-memory stores and checks immediate first run and shutdown
package cli

import (
	"bytes"
	"context"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/crmbridge/db"
	"github.com/harperreed/crmbridge/models"
)

type syncBuffer struct {
	mu  gosync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// TestDaemonImmediateFirstSync verifies every direction runs before the first tick.
func TestDaemonImmediateFirstSync(t *testing.T) {
	b := newTestBridge(t)
	b.partner.Seed("clients", &models.Client{ID: "c1", Name: "Ada Lovelace"})

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- runDaemon(ctx, b.Bridge, []models.Direction{models.DirectionPull, models.DirectionPush}, time.Hour, out)
	}()

	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "\n") >= 2
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("daemon did not shut down within timeout")
	}

	assert.Contains(t, out.String(), "pull partner→primary")
	assert.Contains(t, out.String(), "push primary→partner")
	assert.Equal(t, 1, b.primary.Len("contacts"))
}

// TestDaemonTickerScheduling verifies runs repeat on each tick and are recorded.
func TestDaemonTickerScheduling(t *testing.T) {
	b := newTestBridge(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- runDaemon(ctx, b.Bridge, []models.Direction{models.DirectionPush}, 20*time.Millisecond, out)
	}()

	require.Eventually(t, func() bool {
		runs, err := db.ListSyncRuns(b.DB, 10)
		return err == nil && len(runs) >= 3
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

// TestDaemonStopsWhileWaiting verifies cancellation interrupts a wait on a queued run.
func TestDaemonStopsWhileWaiting(t *testing.T) {
	b := newTestBridge(t)
	release := make(chan struct{})
	b.partner.BatchError = func(string, []string) error {
		<-release
		return nil
	}
	b.primary.Seed("contacts", &models.Contact{ID: "c1", FirstName: "Ada"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runDaemon(ctx, b.Bridge, []models.Direction{models.DirectionPush}, time.Hour, &syncBuffer{})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("daemon did not stop while a run was in flight")
	}
	close(release)
}
