package feedback

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/msg43/winnow/internal/model"
)

// SubmitResult is the sync boundary's response.
type SubmitResult struct {
	Success bool   `json:"success"`
	Queued  int    `json:"queued"`
	Message string `json:"message,omitempty"`
}

// Sync is the feedback ingestion boundary. It validates shape, writes the
// durable queue, and returns — no embedding work, ever, regardless of batch
// size.
type Sync struct {
	queue  *Queue
	logger *zap.Logger
}

// NewSync creates the sync boundary over a queue.
func NewSync(queue *Queue, logger *zap.Logger) *Sync {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sync{queue: queue, logger: logger}
}

// Submit queues a batch of human judgments. All-or-nothing: a malformed
// item or a queue write failure returns an error and queues nothing, so the
// caller knows to retry the whole batch.
func (s *Sync) Submit(ctx context.Context, items []model.FeedbackExample) (SubmitResult, error) {
	if len(items) == 0 {
		return SubmitResult{Success: true, Message: "no items"}, nil
	}

	payloads := make([]string, len(items))
	for i, item := range items {
		if !model.ValidKind(string(item.EntityType)) {
			return SubmitResult{}, fmt.Errorf("item %d: unknown entity type %q", i, item.EntityType)
		}
		if !model.ValidVerdict(string(item.Verdict)) {
			return SubmitResult{}, fmt.Errorf("item %d: unknown verdict %q", i, item.Verdict)
		}
		if item.EntityText == "" {
			return SubmitResult{}, fmt.Errorf("item %d: empty entity text", i)
		}
		raw, err := json.Marshal(item)
		if err != nil {
			return SubmitResult{}, fmt.Errorf("item %d: encode: %w", i, err)
		}
		payloads[i] = string(raw)
	}

	if _, err := s.queue.Enqueue(ctx, payloads); err != nil {
		return SubmitResult{}, fmt.Errorf("queue write failed: %w", err)
	}

	s.logger.Debug("feedback batch queued", zap.Int("count", len(items)))
	return SubmitResult{
		Success: true,
		Queued:  len(items),
		Message: fmt.Sprintf("%d feedback items queued for processing", len(items)),
	}, nil
}
