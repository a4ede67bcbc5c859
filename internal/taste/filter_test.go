package taste

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/msg43/winnow/internal/embed/embedtest"
	"github.com/msg43/winnow/internal/model"
)

const (
	rejectExample = "Crypto will change everything."
	acceptExample = "Bank reserve scarcity drove the September 2019 repo rate spike."
)

// newSeededFilter builds an engine holding one rejection and one acceptance
// with known embeddings, so query texts can be placed at exact similarities.
func newSeededFilter(t *testing.T) (*Filter, *embedtest.Fake) {
	t.Helper()
	fake := embedtest.NewFake()
	fake.Set(rejectExample, embedtest.Unit(40))
	fake.Set(acceptExample, embedtest.Unit(44))

	engine := newTestEngine(t, t.TempDir(), fake)
	_, err := engine.AddFeedbackBatch(context.Background(), []model.FeedbackExample{
		{EntityType: model.KindClaim, EntityText: rejectExample, Verdict: model.VerdictReject, ReasonCategory: "vague"},
		{EntityType: model.KindClaim, EntityText: acceptExample, Verdict: model.VerdictAccept, ReasonCategory: "causal_mechanism"},
	})
	require.NoError(t, err)

	cfg := model.DefaultConfig().Taste
	return NewFilter(engine, cfg, zap.NewNop()), fake
}

func TestCheckEntityThresholds(t *testing.T) {
	filter, fake := newSeededFilter(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		text       string
		vec        []float32
		wantAction model.FilterAction
	}{
		{
			name:       "near duplicate of rejection discards",
			text:       "Crypto is going to change absolutely everything.",
			vec:        embedtest.Blend(40, 41, 0.96),
			wantAction: model.ActionDiscard,
		},
		{
			name:       "similar to rejection flags",
			text:       "Crypto changes many industries.",
			vec:        embedtest.Blend(40, 41, 0.90),
			wantAction: model.ActionFlag,
		},
		{
			name:       "weak similarity keeps",
			text:       "Corn futures fell after the harvest report.",
			vec:        embedtest.Blend(40, 41, 0.50),
			wantAction: model.ActionKeep,
		},
		{
			name:       "near duplicate of acceptance boosts",
			text:       "Scarce bank reserves caused the 2019 repo spike.",
			vec:        embedtest.Blend(44, 45, 0.97),
			wantAction: model.ActionBoost,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake.Set(tt.text, tt.vec)
			verdict := filter.CheckEntity(ctx, tt.text, model.KindClaim)
			assert.Equal(t, tt.wantAction, verdict.Action)
		})
	}
}

func TestCheckEntityRejectPrecedesAccept(t *testing.T) {
	fake := embedtest.NewFake()
	fake.Set(rejectExample, embedtest.Unit(40))
	// Acceptance deliberately placed in the same embedding region.
	fake.Set(acceptExample, embedtest.Unit(40))

	engine := newTestEngine(t, t.TempDir(), fake)
	_, err := engine.AddFeedbackBatch(context.Background(), []model.FeedbackExample{
		{EntityType: model.KindClaim, EntityText: rejectExample, Verdict: model.VerdictReject, ReasonCategory: "vague"},
		{EntityType: model.KindClaim, EntityText: acceptExample, Verdict: model.VerdictAccept},
	})
	require.NoError(t, err)
	filter := NewFilter(engine, model.DefaultConfig().Taste, zap.NewNop())

	text := "Crypto will definitely change everything everywhere."
	fake.Set(text, embedtest.Blend(40, 41, 0.96))

	verdict := filter.CheckEntity(context.Background(), text, model.KindClaim)
	assert.Equal(t, model.ActionDiscard, verdict.Action,
		"a near duplicate of a rejection must never be boosted, however similar to an acceptance")
	assert.Equal(t, rejectExample, verdict.MatchedExample)
}

func TestCheckEntityDeterministic(t *testing.T) {
	filter, fake := newSeededFilter(t)
	text := "Crypto changes many industries."
	fake.Set(text, embedtest.Blend(40, 41, 0.90))

	first := filter.CheckEntity(context.Background(), text, model.KindClaim)
	second := filter.CheckEntity(context.Background(), text, model.KindClaim)
	assert.Equal(t, first, second, "same input and store state must yield the same verdict")
}

func TestCheckEntityFailsOpenOnStoreError(t *testing.T) {
	filter, fake := newSeededFilter(t)
	fake.Err = errors.New("model unavailable")

	verdict := filter.CheckEntity(context.Background(), "anything at all", model.KindClaim)
	assert.Equal(t, model.ActionKeep, verdict.Action, "infrastructure trouble must never discard content")
}

func TestFilterMutatesResultInPlace(t *testing.T) {
	filter, fake := newSeededFilter(t)
	ctx := context.Background()

	discardText := "Crypto is going to change absolutely everything."
	flagText := "Crypto changes many industries."
	boostText := "Scarce bank reserves caused the 2019 repo spike."
	keepText := "Corn futures fell after the harvest report."
	fake.Set(discardText, embedtest.Blend(40, 41, 0.96))
	fake.Set(flagText, embedtest.Blend(40, 41, 0.90))
	fake.Set(boostText, embedtest.Blend(44, 45, 0.97))
	fake.Set(keepText, embedtest.Blend(40, 41, 0.10))

	boosted := &model.Claim{Core: model.Core{EntityText: boostText, ImportanceScore: 9.0}}
	flagged := &model.Claim{Core: model.Core{EntityText: flagText, ImportanceScore: 5.0}}
	result := &model.ExtractionResult{
		Claims: []*model.Claim{
			{Core: model.Core{EntityText: discardText, ImportanceScore: 6.0}},
			flagged,
			boosted,
			{Core: model.Core{EntityText: keepText, ImportanceScore: 4.0}},
		},
	}

	summary := filter.Filter(ctx, result)

	assert.Equal(t, model.FilterSummary{Discarded: 1, Flagged: 1, Boosted: 1, Kept: 1}, summary)
	require.Len(t, result.Claims, 3, "discarded claim must be removed from the result")
	for _, c := range result.Claims {
		assert.NotEqual(t, discardText, c.Text())
	}

	assert.True(t, flagged.Notes().Flagged)
	assert.Equal(t, "vague", flagged.Notes().FlagReason)
	assert.Equal(t, rejectExample, flagged.Notes().SimilarRejection)

	assert.True(t, boosted.Notes().PositiveEcho)
	assert.Equal(t, model.MaxImportance, boosted.Importance(), "boost must clamp at the importance ceiling")
}
