package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/petermyo/DecentralizeFileShare/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessPublisher_Publish(t *testing.T) {
	js := &fakeJetStream{}
	pub := newAccessPublisher(js, nil, nil)
	pub.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	require.NoError(t, pub.Publish(model.KindLink, "xy12ab", DecisionGranted.String(), "10.0.0.1", "curl/8"))
	require.Len(t, js.payloads, 1)
	assert.Equal(t, model.AccessStreamSubject, js.subjects[0])

	var event model.AccessEvent
	require.NoError(t, json.Unmarshal(js.payloads[0], &event))
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "xy12ab", event.Code)
	assert.Equal(t, "granted", event.Outcome)
	assert.Equal(t, model.KindLink, event.Kind)
}

func TestAccessPublisher_PublishError(t *testing.T) {
	pub := newAccessPublisher(&fakeJetStream{err: errors.New("no responders")}, nil, nil)
	assert.Error(t, pub.Publish(model.KindList, "lst001", "expired", "", ""))
}

func TestAccessConsumer_Store(t *testing.T) {
	var stored *model.AccessEvent
	repo := &mockAccessEventRepository{
		createFn: func(ctx context.Context, event *model.AccessEvent) error {
			stored = event
			return nil
		},
	}
	c := NewAccessConsumer(nil, nil, repo)

	require.NoError(t, c.store(context.Background(), []byte(`{"id":"e1","code":"xy12ab","kind":"link","outcome":"granted"}`)))
	require.NotNil(t, stored)
	assert.Equal(t, "e1", stored.ID)

	assert.Error(t, c.store(context.Background(), []byte("not json")))

	repo.createFn = func(context.Context, *model.AccessEvent) error { return errors.New("db down") }
	assert.Error(t, c.store(context.Background(), []byte(`{"id":"e2"}`)))
}

func TestAccessConsumer_StopBeforeStart(t *testing.T) {
	NewAccessConsumer(nil, nil, &mockAccessEventRepository{}).Stop()
}

// failingFetcher fails every fetch with a non-timeout error.
type failingFetcher struct {
	calls        atomic.Int32
	unsubscribed atomic.Bool
}

func (f *failingFetcher) Fetch(int, ...nats.PullOpt) ([]*nats.Msg, error) {
	f.calls.Add(1)
	return nil, nats.ErrConnectionClosed
}

func (f *failingFetcher) Unsubscribe() error {
	f.unsubscribed.Store(true)
	return nil
}

func TestAccessConsumer_BacksOffAfterFetchError(t *testing.T) {
	c := NewAccessConsumer(nil, nil, &mockAccessEventRepository{})
	c.backoff = 50 * time.Millisecond
	sub := &failingFetcher{}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.consume(ctx, sub)

	time.Sleep(220 * time.Millisecond)
	c.Stop()

	calls := sub.calls.Load()
	assert.GreaterOrEqual(t, calls, int32(2))
	assert.LessOrEqual(t, calls, int32(8))
	assert.True(t, sub.unsubscribed.Load())
}

func TestAccessConsumer_StopInterruptsBackoff(t *testing.T) {
	c := NewAccessConsumer(nil, nil, &mockAccessEventRepository{})
	c.backoff = time.Hour
	sub := &failingFetcher{}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.consume(ctx, sub)

	require.Eventually(t, func() bool { return sub.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		c.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on the fetch backoff")
	}
	assert.Equal(t, int32(1), sub.calls.Load())
}

func TestAccessEventPruner_Prune(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	var cutoff time.Time
	repo := &mockAccessEventRepository{
		deleteBeforeFn: func(ctx context.Context, before time.Time) (int64, error) {
			cutoff = before
			return 3, nil
		},
	}
	p := NewAccessEventPruner(nil, repo, 30*24*time.Hour, time.Minute)
	p.now = func() time.Time { return now }

	assert.Equal(t, int64(3), p.prune(context.Background()))
	assert.Equal(t, now.Add(-30*24*time.Hour), cutoff)

	repo.deleteBeforeFn = func(context.Context, time.Time) (int64, error) { return 0, errors.New("db down") }
	assert.Zero(t, p.prune(context.Background()))
}

func TestAccessEventPruner_StartStop(t *testing.T) {
	p := NewAccessEventPruner(nil, &mockAccessEventRepository{}, time.Hour, time.Millisecond)
	p.Start()
	time.Sleep(5 * time.Millisecond)
	p.Stop()
}

func TestCodeGenerator_Next(t *testing.T) {
	gen := NewCodeGenerator(0)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := gen.Next()
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, r := range code {
			assert.Contains(t, codeAlphabet, string(r))
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}
