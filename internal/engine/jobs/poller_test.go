package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clipflow/internal/engine"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider replays scripted poll answers; once the script is exhausted the last answer repeats.
type fakeProvider struct {
	mu        sync.Mutex
	createErr error
	script    []fakeAnswer
	polls     int
	cancelled []string
}

type fakeAnswer struct {
	remote Remote
	err    error
}

func (f *fakeProvider) Create(_ context.Context, _ string, _ map[string]any) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	return "ext-1", nil
}

func (f *fakeProvider) Get(_ context.Context, _ string) (Remote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.polls
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	f.polls++
	return f.script[i].remote, f.script[i].err
}

func (f *fakeProvider) Cancel(_ context.Context, externalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, externalID)
	return nil
}

func (f *fakeProvider) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cancelled)
}

type recorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *recorder) JobChanged(j Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.statuses); n == 0 || r.statuses[n-1] != j.Status {
		r.statuses = append(r.statuses, j.Status)
	}
}

func (r *recorder) seen() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Status(nil), r.statuses...)
}

func testConfig() Config {
	return Config{
		Interval:    5 * time.Millisecond,
		MaxAttempts: 3,
		Timeout:     2 * time.Second,
		MaxBackoff:  20 * time.Millisecond,
	}
}

func newTestPoller(p Provider, obs Observer) *Poller {
	return NewPoller(p, testConfig(), WithObserver(obs), WithLogger(zerolog.Nop()))
}

func requireNodeError(t *testing.T, err error, code engine.ErrorCode) *engine.NodeError {
	t.Helper()
	require.Error(t, err)
	var ne *engine.NodeError
	require.True(t, errors.As(err, &ne), "expected NodeError, got %T: %v", err, err)
	assert.Equal(t, code, ne.Code)
	return ne
}

// ============ Outcomes ============

func TestPoller_Succeeds(t *testing.T) {
	provider := &fakeProvider{script: []fakeAnswer{
		{remote: Remote{Status: StatusRunning}},
		{remote: Remote{Status: StatusRunning}},
		{remote: Remote{Status: StatusSucceeded, Output: "https://cdn/video.mp4"}},
	}}
	rec := &recorder{}
	p := newTestPoller(provider, rec)
	defer p.Stop()

	id, err := p.Submit(context.Background(), Request{NodeID: "n1", Model: "google/veo-3.1"})
	require.NoError(t, err)

	out, err := p.Await(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/video.mp4", out)
	assert.Equal(t, []Status{StatusQueued, StatusRunning, StatusSucceeded}, rec.seen())
	assert.Zero(t, provider.cancelCount())
}

func TestPoller_RemoteFailure(t *testing.T) {
	provider := &fakeProvider{script: []fakeAnswer{
		{remote: Remote{Status: StatusFailed, Error: "NSFW content detected"}},
	}}
	p := newTestPoller(provider, nil)
	defer p.Stop()

	id, err := p.Submit(context.Background(), Request{Model: "m"})
	require.NoError(t, err)

	_, err = p.Await(context.Background(), id)
	ne := requireNodeError(t, err, engine.CodeExternalCallFailed)
	assert.Contains(t, ne.Message, "NSFW")
}

func TestPoller_TransientErrorsRecover(t *testing.T) {
	boom := errors.New("connection reset")
	provider := &fakeProvider{script: []fakeAnswer{
		{err: boom},
		{err: boom},
		{remote: Remote{Status: StatusSucceeded, Output: []any{"a.png"}}},
	}}
	p := newTestPoller(provider, nil)
	defer p.Stop()

	id, err := p.Submit(context.Background(), Request{Model: "m"})
	require.NoError(t, err)

	out, err := p.Await(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []any{"a.png"}, out)
}

func TestPoller_ExhaustedAttemptsEscalateToTimeout(t *testing.T) {
	provider := &fakeProvider{script: []fakeAnswer{{err: errors.New("dns failure")}}}
	p := newTestPoller(provider, nil)
	defer p.Stop()

	id, err := p.Submit(context.Background(), Request{Model: "m"})
	require.NoError(t, err)

	_, err = p.Await(context.Background(), id)
	ne := requireNodeError(t, err, engine.CodeExternalCallTimeout)
	assert.Contains(t, ne.Message, "3 failed attempts")
	assert.Equal(t, 1, provider.cancelCount())

	job, err := p.Poll(id)
	require.NoError(t, err)
	assert.Equal(t, StatusTimedOut, job.Status)
	assert.Equal(t, 0, job.AttemptsRemaining)
}

func TestPoller_WallClockTimeout(t *testing.T) {
	provider := &fakeProvider{script: []fakeAnswer{{remote: Remote{Status: StatusRunning}}}}
	p := newTestPoller(provider, nil)
	defer p.Stop()

	id, err := p.Submit(context.Background(), Request{Model: "m", Timeout: 40 * time.Millisecond})
	require.NoError(t, err)

	_, err = p.Await(context.Background(), id)
	requireNodeError(t, err, engine.CodeExternalCallTimeout)
	assert.Equal(t, 1, provider.cancelCount())
}

// ============ Cancellation ============

func TestPoller_AwaitContextCancelCancelsJob(t *testing.T) {
	provider := &fakeProvider{script: []fakeAnswer{{remote: Remote{Status: StatusRunning}}}}
	rec := &recorder{}
	p := newTestPoller(provider, rec)
	defer p.Stop()

	id, err := p.Submit(context.Background(), Request{Model: "m"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	_, err = p.Await(ctx, id)
	requireNodeError(t, err, engine.CodeCancelled)
	assert.Equal(t, 1, provider.cancelCount())
	assert.Equal(t, StatusCancelled, rec.seen()[len(rec.seen())-1])
}

func TestPoller_SubmitFailure(t *testing.T) {
	provider := &fakeProvider{createErr: engine.NewNodeError(engine.CodeExternalCallFailed, "invalid version")}
	p := newTestPoller(provider, nil)
	defer p.Stop()

	_, err := p.Submit(context.Background(), Request{Model: "m"})
	requireNodeError(t, err, engine.CodeExternalCallFailed)
}

func TestPoller_Forget(t *testing.T) {
	provider := &fakeProvider{script: []fakeAnswer{{remote: Remote{Status: StatusSucceeded, Output: "x"}}}}
	p := newTestPoller(provider, nil)
	defer p.Stop()

	id, err := p.Submit(context.Background(), Request{Model: "m"})
	require.NoError(t, err)
	_, err = p.Await(context.Background(), id)
	require.NoError(t, err)

	p.Forget(id)
	_, err = p.Poll(id)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

// ============ Backoff ============

func TestBackoff(t *testing.T) {
	tests := []struct {
		n    int
		want time.Duration
	}{
		{0, 2 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff(tt.n, 2*time.Second, 30*time.Second, false), "attempt %d", tt.n)
	}
}

func TestBackoff_JitterStaysInBand(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := backoff(2, time.Second, 30*time.Second, true)
		assert.GreaterOrEqual(t, d, 1600*time.Millisecond)
		assert.Less(t, d, 2400*time.Millisecond)
	}
}
