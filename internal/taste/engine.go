// Package taste implements the learned-preference layer: a persistent vector
// store of human Accept/Reject feedback (the engine) and the fast per-entity
// similarity check that runs on every extracted entity (the filter).
package taste

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/msg43/winnow/internal/embed"
	"github.com/msg43/winnow/internal/model"
)

// Sentinel errors for engine operations.
var (
	// ErrInvalidExample indicates a feedback example with a bad kind or verdict.
	ErrInvalidExample = errors.New("invalid feedback example")

	// ErrStoreFailed indicates a vector store read or write failure.
	ErrStoreFailed = errors.New("vector store operation failed")
)

// goldenVersionFile is the marker persisted beside the index recording which
// golden set version has been ingested.
const goldenVersionFile = "golden_version"

// Match is one ranked result from a similarity query.
type Match struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata"`
	Distance   float64           `json:"distance"`
	Similarity float64           `json:"similarity"`
}

// Verdict returns the stored verdict of the matched example.
func (m Match) Verdict() model.Verdict {
	return model.Verdict(m.Metadata["verdict"])
}

// ReasonCategory returns the stored rejection/acceptance reason.
func (m Match) ReasonCategory() string {
	return m.Metadata["reason_category"]
}

// Engine is the persistent vector store of human feedback examples — the
// only source of learned preference in the system. It tolerates concurrent
// readers and a single concurrent writer.
type Engine struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embed.Embedder
	path       string
	logger     *zap.Logger

	golden  *model.GoldenSet // nil if the bundled artifact failed to load
	writeMu sync.Mutex
	bootMu  sync.Mutex
}

// engines shares one handle per store directory. chromem's persistent DB has
// no cross-handle coherence: two independent handles over the same path each
// hold their own in-memory index, so both would see an empty store and ingest
// the golden set twice. Every component in a process gets the same handle.
var engines = struct {
	mu     sync.Mutex
	byPath map[string]*Engine
}{byPath: make(map[string]*Engine)}

// NewEngine opens (or creates) the persistent feedback store at cfg.Path.
// Opening the same path again returns the already-open handle; the store has
// exactly one in-process handle. Call Bootstrap before first use to
// guarantee the golden-set invariant.
func NewEngine(cfg model.StoreConfig, embedder embed.Embedder, logger *zap.Logger) (*Engine, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrStoreFailed)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	path, err := expandPath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding store path: %w", err)
	}

	engines.mu.Lock()
	defer engines.mu.Unlock()
	if existing, ok := engines.byPath[path]; ok {
		return existing, nil
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	name := cfg.Collection
	if name == "" {
		name = "feedback"
	}
	e := &Engine{
		db:       db,
		embedder: embedder,
		path:     path,
		logger:   logger,
	}
	collection, err := db.GetOrCreateCollection(name, nil, e.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", name, err)
	}
	e.collection = collection

	engines.byPath[path] = e
	logger.Info("taste engine opened",
		zap.String("path", path),
		zap.String("collection", name),
		zap.Int("examples", collection.Count()),
	)
	return e, nil
}

func (e *Engine) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return e.embedder.EmbedQuery(ctx, text)
	}
}

// expandPath expands a leading ~ to the user home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// AddFeedback stores one human judgment and returns its ID. The embedding is
// computed here; callers on latency-sensitive paths must not call this
// directly (the background processor is the writer).
func (e *Engine) AddFeedback(ctx context.Context, ex model.FeedbackExample) (string, error) {
	ids, err := e.AddFeedbackBatch(ctx, []model.FeedbackExample{ex})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// AddFeedbackBatch stores a batch of judgments, embedding them in one pass.
func (e *Engine) AddFeedbackBatch(ctx context.Context, examples []model.FeedbackExample) ([]string, error) {
	if len(examples) == 0 {
		return nil, nil
	}
	texts := make([]string, len(examples))
	for i, ex := range examples {
		if !model.ValidKind(string(ex.EntityType)) {
			return nil, fmt.Errorf("%w: unknown entity type %q", ErrInvalidExample, ex.EntityType)
		}
		if !model.ValidVerdict(string(ex.Verdict)) {
			return nil, fmt.Errorf("%w: unknown verdict %q", ErrInvalidExample, ex.Verdict)
		}
		if strings.TrimSpace(ex.EntityText) == "" {
			return nil, fmt.Errorf("%w: empty entity text", ErrInvalidExample)
		}
		texts[i] = ex.EntityText
	}

	embeddings, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding feedback: %v", ErrStoreFailed, err)
	}

	docs := make([]chromem.Document, len(examples))
	ids := make([]string, len(examples))
	for i, ex := range examples {
		ids[i] = uuid.NewString()
		createdAt := ex.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		docs[i] = chromem.Document{
			ID:      ids[i],
			Content: ex.EntityText,
			Metadata: map[string]string{
				"entity_type":     string(ex.EntityType),
				"verdict":         string(ex.Verdict),
				"reason_category": ex.ReasonCategory,
				"user_notes":      ex.UserNotes,
				"source_id":       ex.SourceID,
				"created_at":      createdAt.Format(time.RFC3339),
			},
			Embedding: embeddings[i],
		}
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if err := e.collection.AddDocuments(ctx, docs, 1); err != nil {
		return nil, fmt.Errorf("%w: adding documents: %v", ErrStoreFailed, err)
	}

	e.logger.Debug("stored feedback examples", zap.Int("count", len(examples)))
	return ids, nil
}

// QuerySimilar returns up to n stored examples of the given entity kind
// ranked by similarity to text. A non-nil verdictFilter restricts results to
// accepted or rejected examples.
func (e *Engine) QuerySimilar(ctx context.Context, text string, kind model.EntityKind, n int, verdictFilter *model.Verdict) ([]Match, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: n must be positive", ErrStoreFailed)
	}
	total := e.collection.Count()
	if total == 0 {
		return nil, nil
	}
	if n > total {
		n = total
	}

	where := map[string]string{"entity_type": string(kind)}
	if verdictFilter != nil {
		where["verdict"] = string(*verdictFilter)
	}

	results, err := e.collection.Query(ctx, text, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrStoreFailed, err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		sim := float64(r.Similarity)
		matches[i] = Match{
			ID:         r.ID,
			Text:       r.Content,
			Metadata:   r.Metadata,
			Similarity: sim,
			Distance:   1 - sim,
		}
	}
	return matches, nil
}

// Stats returns aggregate counts of stored feedback.
func (e *Engine) Stats(ctx context.Context) (model.TasteStats, error) {
	total := e.collection.Count()
	stats := model.TasteStats{Total: total}
	if total == 0 {
		return stats, nil
	}

	// chromem has no count-by-filter, so count via a filtered query against
	// a fixed probe vector.
	probe := make([]float32, e.embedder.Dimension())
	probe[0] = 1

	for _, v := range []model.Verdict{model.VerdictAccept, model.VerdictReject} {
		results, err := e.collection.QueryEmbedding(ctx, probe, total, map[string]string{"verdict": string(v)}, nil)
		if err != nil {
			return stats, fmt.Errorf("%w: stats query: %v", ErrStoreFailed, err)
		}
		if v == model.VerdictAccept {
			stats.AcceptCount = len(results)
		} else {
			stats.RejectCount = len(results)
		}
	}
	return stats, nil
}

// GoldenSize returns the number of examples in the bundled golden set, or 0
// if the artifact could not be loaded.
func (e *Engine) GoldenSize() int {
	if e.golden == nil {
		return 0
	}
	return len(e.golden.Examples)
}

// IsColdStart reports whether the engine holds nothing beyond the golden set.
func (e *Engine) IsColdStart(ctx context.Context) bool {
	return e.collection.Count() <= e.GoldenSize()
}

// markerPath returns the location of the persisted golden version marker.
func (e *Engine) markerPath() string {
	return filepath.Join(e.path, goldenVersionFile)
}

func (e *Engine) readGoldenMarker() string {
	data, err := os.ReadFile(e.markerPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (e *Engine) writeGoldenMarker(version string) error {
	return os.WriteFile(e.markerPath(), []byte(version+"\n"), 0o644)
}
