package jobs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.bin")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestAsyncDiskLoadJobReadsFileContents(t *testing.T) {
	m := newTestManager(t, 2)
	go m.RunMainThread()

	path := writeTempFile(t, "hello from disk")

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	job := NewAsyncDiskLoadJob(m, path, LoadAssetData, func(data []byte, err error) {
		done <- result{data, err}
	})
	job.Queue(m)

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, "hello from disk", string(r.data))
	case <-time.After(2 * time.Second):
		t.Fatal("disk load never completed")
	}
}

func TestAsyncDiskLoadJobReportsOpenError(t *testing.T) {
	m := newTestManager(t, 2)
	go m.RunMainThread()

	done := make(chan error, 1)
	job := NewAsyncDiskLoadJob(m, filepath.Join(t.TempDir(), "does-not-exist"), LoadAssetData, func(data []byte, err error) {
		done <- err
	})
	job.Queue(m)

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("disk load never completed")
	}
}

func TestDiskLoadLimiterPromotesMostUrgentWaiterOnRelease(t *testing.T) {
	limiter := &diskLoadLimiter{max: 1}
	assert.True(t, limiter.tryAcquire())
	assert.False(t, limiter.tryAcquire(), "only one slot available")

	m := NewJobManager(JobManagerConfig{PerformanceCoreCount: 1})
	low := NewAsyncDiskLoadJob(m, "low", HousekeepingSweep, func([]byte, error) {})
	urgent := NewAsyncDiskLoadJob(m, "urgent", EndSession, func([]byte, error) {})

	limiter.enqueueWaiting(low)
	limiter.enqueueWaiting(urgent)
	require.Len(t, limiter.waiting, 2)
	assert.Same(t, urgent, limiter.waiting[0], "more urgent waiter must be promoted first")
}
