package taste

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/msg43/winnow/internal/embed/embedtest"
	"github.com/msg43/winnow/internal/model"
)

func TestLoadGoldenSet(t *testing.T) {
	set, err := loadGoldenSet()
	require.NoError(t, err)
	assert.NotEmpty(t, set.SchemaVersion)
	require.NotEmpty(t, set.Examples)

	kinds := make(map[model.EntityKind]bool)
	for _, ex := range set.Examples {
		assert.True(t, model.ValidKind(string(ex.EntityType)), "golden example with bad kind %q", ex.EntityType)
		assert.True(t, model.ValidVerdict(string(ex.Verdict)), "golden example with bad verdict %q", ex.Verdict)
		assert.NotEmpty(t, ex.EntityText)
		kinds[ex.EntityType] = true
	}
	for _, k := range model.Kinds {
		assert.True(t, kinds[k], "golden set must cover kind %q", k)
	}
}

// A fresh install already rejects trivially-true claims: the golden set alone
// is enough to discard an exact restatement of a shipped rejection.
func TestFreshInstallDiscardsTrivialClaim(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, t.TempDir(), embedtest.NewFake())
	require.NoError(t, engine.Bootstrap(ctx))

	filter := NewFilter(engine, model.DefaultConfig().Taste, zap.NewNop())
	verdict := filter.CheckEntity(ctx, "The stock market exists and people trade stocks.", model.KindClaim)

	assert.Equal(t, model.ActionDiscard, verdict.Action)
	assert.Equal(t, "trivially_true", verdict.ReasonCategory)
	assert.InDelta(t, 1.0, verdict.SimilarityToReject, 1e-5)
}

// A claim close to a shipped acceptance gets the positive echo boost.
func TestFreshInstallBoostsCausalClaim(t *testing.T) {
	ctx := context.Background()
	goldenAccept := "When the central bank raises interest rates, borrowing costs rise, which dampens aggregate demand and slows inflation."
	paraphrase := "Higher central bank rates raise borrowing costs, cooling demand and inflation."

	fake := embedtest.NewFake()
	fake.Set(goldenAccept, embedtest.Unit(40))
	fake.Set(paraphrase, embedtest.Blend(40, 41, 0.97))

	engine := newTestEngine(t, t.TempDir(), fake)
	require.NoError(t, engine.Bootstrap(ctx))

	filter := NewFilter(engine, model.DefaultConfig().Taste, zap.NewNop())
	verdict := filter.CheckEntity(ctx, paraphrase, model.KindClaim)

	assert.Equal(t, model.ActionBoost, verdict.Action)
	assert.Equal(t, goldenAccept, verdict.MatchedExample)
	assert.Equal(t, 2.0, verdict.ScoreAdjustment)
}
