package bulkdriver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/w3a11y-artisan/internal/apperr"
	"github.com/suPer8Hu/w3a11y-artisan/internal/bulk"
)

type step struct {
	pr  *bulk.Progress
	err error
}

type scriptedRunner struct {
	steps []step
	calls int
}

func (r *scriptedRunner) ProcessNextBatch(context.Context, string) (*bulk.Progress, error) {
	s := r.steps[r.calls]
	r.calls++
	return s.pr, s.err
}

func newDriver(r BatchRunner) (*Driver, *[]time.Duration) {
	d := New(r, nil)
	var waits []time.Duration
	d.sleep = func(_ context.Context, dur time.Duration) error {
		waits = append(waits, dur)
		return nil
	}
	return d, &waits
}

func ok(status string) *bulk.Progress {
	return &bulk.Progress{Status: status, RetryAfterMS: 2000, BatchResults: []bulk.ImageResult{{Success: true}}}
}

func failed(code apperr.Code, retry int64) *bulk.Progress {
	return &bulk.Progress{Status: "running", RetryAfterMS: retry, LastError: &bulk.LastError{Code: string(code)}}
}

func TestDrive_RunsUntilCompleted(t *testing.T) {
	r := &scriptedRunner{steps: []step{
		{pr: ok("running")},
		{pr: failed(apperr.CodeServer, 4000)},
		{pr: ok("running")},
		{pr: ok("completed")},
	}}
	d, waits := newDriver(r)

	require.NoError(t, d.Drive(context.Background(), "s1"))
	assert.Equal(t, 4, r.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 2 * time.Second}, *waits)
}

func TestDrive_StopsOnPauseAndSessionErrors(t *testing.T) {
	r := &scriptedRunner{steps: []step{{pr: &bulk.Progress{Status: bulk.StatusInsufficientCredits, CanResume: true}}}}
	d, _ := newDriver(r)
	require.NoError(t, d.Drive(context.Background(), "s1"))
	assert.Equal(t, 1, r.calls)

	r = &scriptedRunner{steps: []step{{err: apperr.Session("not running")}}}
	d, _ = newDriver(r)
	require.NoError(t, d.Drive(context.Background(), "s1"))
}

func TestDrive_GivesUpAfterRepeatedFailures(t *testing.T) {
	r := &scriptedRunner{steps: []step{
		{pr: failed(apperr.CodeServer, 1)},
		{pr: failed(apperr.CodeServer, 1)},
		{pr: failed(apperr.CodeServer, 1)},
	}}
	d, _ := newDriver(r)
	d.MaxFailures = 3
	require.NoError(t, d.Drive(context.Background(), "s1"))
	assert.Equal(t, 3, r.calls)

	r = &scriptedRunner{steps: []step{{pr: failed(apperr.CodeAuth, 1)}}}
	d, _ = newDriver(r)
	require.NoError(t, d.Drive(context.Background(), "s1"))
	assert.Equal(t, 1, r.calls)
}

func TestDrive_ReturnsTransientErrors(t *testing.T) {
	boom := errors.New("redis down")
	r := &scriptedRunner{steps: []step{{err: boom}}}
	d, _ := newDriver(r)
	assert.ErrorIs(t, d.Drive(context.Background(), "s1"), boom)
}
