package taste

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/msg43/winnow/internal/model"
)

//go:embed goldenset.yaml
var goldenSetYAML []byte

// loadGoldenSet parses the bundled golden-set artifact.
func loadGoldenSet() (*model.GoldenSet, error) {
	var set model.GoldenSet
	if err := yaml.Unmarshal(goldenSetYAML, &set); err != nil {
		return nil, fmt.Errorf("parsing golden set: %w", err)
	}
	if set.SchemaVersion == "" {
		return nil, fmt.Errorf("golden set has no schema_version")
	}
	return &set, nil
}

// Bootstrap makes the golden-set invariant hold: the engine is never truly
// empty. Idempotence is decided from store state under the bootstrap lock, so
// concurrent calls — every component calls Bootstrap on the shared handle —
// ingest exactly once: the first caller finds the store empty and loads it,
// later callers find the marker current and no-op.
//
// Empty store: ingest the bundled set and persist its version marker.
// Version changed: delete exactly the golden-tagged entries, ingest the new
// set, update the marker. Otherwise: no-op.
//
// A missing or unreadable artifact is logged and skipped — the engine keeps
// serving whatever is already persisted.
func (e *Engine) Bootstrap(ctx context.Context) error {
	e.bootMu.Lock()
	defer e.bootMu.Unlock()

	set, err := loadGoldenSet()
	if err != nil {
		e.logger.Warn("golden set unavailable, continuing with persisted feedback", zap.Error(err))
		return nil
	}
	e.golden = set

	switch {
	case e.collection.Count() == 0:
		if err := e.ingestGolden(ctx, set); err != nil {
			return err
		}
		e.logger.Info("golden set ingested into empty store",
			zap.String("version", set.SchemaVersion),
			zap.Int("examples", len(set.Examples)),
		)

	case e.readGoldenMarker() != set.SchemaVersion:
		old := e.readGoldenMarker()
		if err := e.replaceGolden(ctx, set); err != nil {
			return err
		}
		e.logger.Info("golden set upgraded",
			zap.String("from", old),
			zap.String("to", set.SchemaVersion),
			zap.Int("examples", len(set.Examples)),
		)

	default:
		e.logger.Debug("golden set current", zap.String("version", set.SchemaVersion))
	}
	return nil
}

func (e *Engine) ingestGolden(ctx context.Context, set *model.GoldenSet) error {
	examples := make([]model.FeedbackExample, len(set.Examples))
	now := time.Now().UTC()
	for i, ex := range set.Examples {
		ex.SourceID = model.GoldenSourceID
		if ex.CreatedAt.IsZero() {
			ex.CreatedAt = now
		}
		examples[i] = ex
	}
	if _, err := e.AddFeedbackBatch(ctx, examples); err != nil {
		return fmt.Errorf("ingesting golden set: %w", err)
	}
	if err := e.writeGoldenMarker(set.SchemaVersion); err != nil {
		return fmt.Errorf("persisting golden version marker: %w", err)
	}
	return nil
}

// replaceGolden atomically swaps golden-tagged entries for the new set.
// User feedback is untouched.
func (e *Engine) replaceGolden(ctx context.Context, set *model.GoldenSet) error {
	e.writeMu.Lock()
	err := e.collection.Delete(ctx, map[string]string{"source_id": model.GoldenSourceID}, nil)
	e.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: deleting stale golden entries: %v", ErrStoreFailed, err)
	}
	return e.ingestGolden(ctx, set)
}
