package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msg43/winnow/internal/model"
)

// recordingSink collects ingested examples, failing texts listed in failOn.
type recordingSink struct {
	mu     sync.Mutex
	stored []model.FeedbackExample
	failOn map[string]bool
}

func (s *recordingSink) AddFeedback(ctx context.Context, ex model.FeedbackExample) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn[ex.EntityText] {
		return "", errors.New("sink rejected example")
	}
	s.stored = append(s.stored, ex)
	return "id", nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stored)
}

func (s *recordingSink) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.stored))
	for i, ex := range s.stored {
		out[i] = ex.EntityText
	}
	return out
}

func testFeedbackConfig() model.FeedbackConfig {
	cfg := model.DefaultConfig().Feedback
	cfg.PollInterval = 10 * time.Millisecond
	cfg.StopTimeout = time.Second
	return cfg
}

func enqueueExamples(t *testing.T, q *Queue, texts ...string) {
	t.Helper()
	payloads := make([]string, len(texts))
	for i, text := range texts {
		raw, err := json.Marshal(model.FeedbackExample{
			EntityType: model.KindClaim,
			EntityText: text,
			Verdict:    model.VerdictAccept,
		})
		require.NoError(t, err)
		payloads[i] = string(raw)
	}
	_, err := q.Enqueue(context.Background(), payloads)
	require.NoError(t, err)
}

func TestProcessorDrainsQueue(t *testing.T) {
	q := openTestQueue(t, RetryPolicy{})
	sink := &recordingSink{}
	proc := NewProcessor(q, sink, testFeedbackConfig(), nil)

	enqueueExamples(t, q, "one", "two", "three", "four", "five")

	proc.Start()
	defer proc.Stop()

	require.Eventually(t, func() bool { return sink.count() == 5 },
		2*time.Second, 10*time.Millisecond, "processor should ingest all queued feedback")

	pending, err := q.PendingCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestProcessorBadItemDoesNotAbortBatch(t *testing.T) {
	q := openTestQueue(t, RetryPolicy{})
	sink := &recordingSink{}
	proc := NewProcessor(q, sink, testFeedbackConfig(), nil)

	// One structurally broken payload among good ones.
	_, err := q.Enqueue(context.Background(), []string{`this is not json`})
	require.NoError(t, err)
	enqueueExamples(t, q, "good-1", "good-2")

	proc.Start()
	defer proc.Stop()

	require.Eventually(t, func() bool { return sink.count() == 2 },
		2*time.Second, 10*time.Millisecond)

	// The poison row is terminally failed, not retried forever.
	require.Eventually(t, func() bool {
		pending, err := q.PendingCount(context.Background())
		return err == nil && pending == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProcessorSinkFailureMarksRow(t *testing.T) {
	q := openTestQueue(t, RetryPolicy{})
	sink := &recordingSink{failOn: map[string]bool{"rejected": true}}
	proc := NewProcessor(q, sink, testFeedbackConfig(), nil)

	enqueueExamples(t, q, "rejected", "accepted")

	proc.Start()
	defer proc.Stop()

	require.Eventually(t, func() bool { return sink.count() == 1 },
		2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		pending, err := q.PendingCount(context.Background())
		return err == nil && pending == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"accepted"}, sink.texts())
}

// blockingSink parks every ingest on the worker context, simulating a slow
// embedding step caught by shutdown.
type blockingSink struct {
	entered chan struct{}
	once    sync.Once
}

func (s *blockingSink) AddFeedback(ctx context.Context, ex model.FeedbackExample) (string, error) {
	s.once.Do(func() { close(s.entered) })
	<-ctx.Done()
	return "", ctx.Err()
}

func TestProcessorStopReleasesInterruptedBatch(t *testing.T) {
	ctx := context.Background()
	q := openTestQueue(t, RetryPolicy{MaxAttempts: 1})
	sink := &blockingSink{entered: make(chan struct{})}
	proc := NewProcessor(q, sink, testFeedbackConfig(), nil)

	enqueueExamples(t, q, "one", "two", "three")

	proc.Start()
	select {
	case <-sink.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("processor never claimed the batch")
	}
	require.NoError(t, proc.Stop())

	// Nothing was ingested, nothing was failed: the whole batch is back and
	// the interrupted claim cost no attempts.
	rows, err := q.Claim(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3, "an interrupted batch must remain claimable")
	for _, row := range rows {
		assert.Equal(t, 1, row.Attempts)
	}
}

func TestProcessorStopIsBounded(t *testing.T) {
	q := openTestQueue(t, RetryPolicy{})
	proc := NewProcessor(q, &recordingSink{}, testFeedbackConfig(), nil)

	proc.Start()
	done := make(chan error, 1)
	go func() { done <- proc.Stop() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return within bound")
	}
}

func TestProcessorStopWithoutStart(t *testing.T) {
	proc := NewProcessor(openTestQueue(t, RetryPolicy{}), &recordingSink{}, testFeedbackConfig(), nil)
	assert.NoError(t, proc.Stop())
}
