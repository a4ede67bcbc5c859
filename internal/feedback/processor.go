package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/msg43/winnow/internal/model"
)

// Sink receives ingested feedback. Satisfied by the taste engine.
type Sink interface {
	AddFeedback(ctx context.Context, ex model.FeedbackExample) (string, error)
}

// Processor is the long-lived background worker that drains the queue into
// the taste engine. It is the only component that computes embeddings
// outside the inline filter path — ingress latency never pays for them.
type Processor struct {
	queue  *Queue
	sink   Sink
	cfg    model.FeedbackConfig
	logger *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewProcessor creates a feedback processor. Call Start to begin polling.
func NewProcessor(queue *Queue, sink Sink, cfg model.FeedbackConfig, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10 * time.Second
	}
	return &Processor{queue: queue, sink: sink, cfg: cfg, logger: logger}
}

// Start launches the worker goroutine. Idempotent start is not supported;
// callers own the lifecycle and call Start exactly once.
func (p *Processor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.cfg.PollInterval)
		defer ticker.Stop()

		p.logger.Info("feedback processor started",
			zap.Duration("poll_interval", p.cfg.PollInterval),
			zap.Int("batch_size", p.cfg.BatchSize),
		)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.processBatch(ctx)
			}
		}
	}()
}

// Stop cancels the worker and waits for it to drain, bounded by the
// configured stop timeout.
func (p *Processor) Stop() error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	select {
	case <-p.done:
		p.logger.Info("feedback processor stopped")
		return nil
	case <-time.After(p.cfg.StopTimeout):
		return fmt.Errorf("feedback processor did not stop within %s", p.cfg.StopTimeout)
	}
}

// processBatch claims one batch and ingests it item by item. A bad item is
// marked under the retry policy and never aborts the rest of the batch or
// the worker.
func (p *Processor) processBatch(ctx context.Context) {
	rows, err := p.queue.Claim(ctx, p.cfg.BatchSize)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("claiming feedback batch failed", zap.Error(err))
		}
		return
	}
	if len(rows) == 0 {
		return
	}

	var ok, failed int
	for i, row := range rows {
		if ctx.Err() != nil {
			p.releaseRemaining(rows[i:])
			return
		}
		if err := p.processRow(ctx, row); err != nil {
			// Cancellation mid-row is not a row failure; give the rest of
			// the batch back so a later worker picks it up.
			if ctx.Err() != nil {
				p.releaseRemaining(rows[i:])
				return
			}
			failed++
			if markErr := p.queue.MarkFailed(ctx, row.QueueID, row.Attempts, err); markErr != nil {
				p.logger.Error("marking feedback row failed", zap.String("queue_id", row.QueueID), zap.Error(markErr))
			}
			p.logger.Warn("feedback item rejected",
				zap.String("queue_id", row.QueueID),
				zap.Int("attempts", row.Attempts),
				zap.Error(err),
			)
			continue
		}
		ok++
		if err := p.queue.MarkProcessed(ctx, row.QueueID); err != nil {
			p.logger.Error("marking feedback row processed", zap.String("queue_id", row.QueueID), zap.Error(err))
		}
	}
	p.logger.Info("feedback batch processed", zap.Int("ingested", ok), zap.Int("failed", failed))
}

// releaseRemaining gives unprocessed claimed rows back to the queue. The
// worker context is already cancelled here, so the release runs under its
// own bounded context.
func (p *Processor) releaseRemaining(rows []Row) {
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.QueueID
	}
	releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.queue.Release(releaseCtx, ids); err != nil {
		p.logger.Error("releasing interrupted batch failed",
			zap.Int("rows", len(ids)), zap.Error(err))
		return
	}
	p.logger.Info("released interrupted batch", zap.Int("rows", len(ids)))
}

func (p *Processor) processRow(ctx context.Context, row Row) error {
	var ex model.FeedbackExample
	if err := json.Unmarshal([]byte(row.FeedbackJSON), &ex); err != nil {
		return fmt.Errorf("decode feedback: %w", err)
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = row.ReceivedAt
	}
	if _, err := p.sink.AddFeedback(ctx, ex); err != nil {
		return fmt.Errorf("store feedback: %w", err)
	}
	return nil
}
