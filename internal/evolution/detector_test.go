package evolution

import (
	"context"
	"errors"
	"testing"

	"github.com/msg43/winnow/internal/embed/embedtest"
	"github.com/msg43/winnow/internal/history"
	"github.com/msg43/winnow/internal/model"
)

// stubSource serves a fixed knowledge snapshot and records mention bumps.
type stubSource struct {
	knowledge *history.ChannelKnowledge
	err       error
	mentions  []string
}

func (s *stubSource) ChannelKnowledge(ctx context.Context, channelID string) (*history.ChannelKnowledge, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.knowledge, nil
}

func (s *stubSource) IncrementMention(ctx context.Context, claimID string) error {
	s.mentions = append(s.mentions, claimID)
	return nil
}

const priorClaim = "The Fed will cut rates in March."

func newTestDetector(source history.Source, fake *embedtest.Fake) *Detector {
	return NewDetector(fake, source, nil, model.DefaultConfig().Evolution, nil)
}

func historyWith(claims ...history.KnownClaim) *history.ChannelKnowledge {
	return &history.ChannelKnowledge{
		ClaimsByTopic: map[string][]history.KnownClaim{"monetary policy": claims},
	}
}

func newClaim(text string) *model.Claim {
	return &model.Claim{Core: model.Core{EntityID: "new-" + text[:3], EntityText: text}}
}

func TestAnalyzeClaimsDuplicateDropped(t *testing.T) {
	fake := embedtest.NewFake()
	source := &stubSource{knowledge: historyWith(history.KnownClaim{ID: "h1", Text: priorClaim})}
	detector := newTestDetector(source, fake)

	// Identical text embeds identically, so similarity is 1.0.
	claims := []*model.Claim{newClaim(priorClaim)}
	records, kept := detector.AnalyzeClaims(context.Background(), claims, "ch1", "2026-08-01")

	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0].Status != model.EvolutionDuplicate {
		t.Errorf("Expected duplicate, got %q", records[0].Status)
	}
	if records[0].MatchedClaimID != "h1" {
		t.Errorf("Expected match against h1, got %q", records[0].MatchedClaimID)
	}
	if len(kept) != 0 {
		t.Errorf("Expected duplicate to be dropped, kept %d", len(kept))
	}
	if len(source.mentions) != 1 || source.mentions[0] != "h1" {
		t.Errorf("Expected mention bump for h1, got %v", source.mentions)
	}
}

func TestAnalyzeClaimsEvolutionLinked(t *testing.T) {
	fake := embedtest.NewFake()
	fake.Set(priorClaim, embedtest.Unit(40))
	refinement := "The Fed will cut rates in June, shortly after the March meeting."
	fake.Set(refinement, embedtest.Blend(40, 41, 0.90))

	source := &stubSource{knowledge: historyWith(history.KnownClaim{ID: "h1", Text: priorClaim})}
	detector := newTestDetector(source, fake)

	records, kept := detector.AnalyzeClaims(context.Background(), []*model.Claim{newClaim(refinement)}, "ch1", "")

	if records[0].Status != model.EvolutionEvolution {
		t.Fatalf("Expected evolution, got %q", records[0].Status)
	}
	if records[0].EvolvesFromID != "h1" {
		t.Errorf("Expected evolves_from h1, got %q", records[0].EvolvesFromID)
	}
	if len(kept) != 1 {
		t.Fatalf("Expected evolution to be kept, got %d", len(kept))
	}
	notes := kept[0].Notes()
	if notes.EvolutionStatus != model.EvolutionEvolution || notes.EvolvesFromID != "h1" {
		t.Errorf("Expected evolution annotation, got %+v", notes)
	}
}

func TestAnalyzeClaimsContradictionSurfaced(t *testing.T) {
	fake := embedtest.NewFake()
	fake.Set(priorClaim, embedtest.Unit(40))
	reversal := "The Fed will not cut rates in March."
	fake.Set(reversal, embedtest.Blend(40, 41, 0.90))

	source := &stubSource{knowledge: historyWith(history.KnownClaim{ID: "h1", Text: priorClaim})}
	detector := newTestDetector(source, fake)

	records, kept := detector.AnalyzeClaims(context.Background(), []*model.Claim{newClaim(reversal)}, "ch1", "")

	if records[0].Status != model.EvolutionContradiction {
		t.Fatalf("Expected contradiction, got %q", records[0].Status)
	}
	if records[0].ContradictsID != "h1" {
		t.Errorf("Expected contradicts h1, got %q", records[0].ContradictsID)
	}
	if len(kept) != 1 {
		t.Error("Expected contradiction to be kept for downstream review")
	}
	if kept[0].Notes().ContradictsID != "h1" {
		t.Errorf("Expected contradiction annotation, got %+v", kept[0].Notes())
	}
}

func TestAnalyzeClaimsNovelBelowRelatedBand(t *testing.T) {
	fake := embedtest.NewFake()
	fake.Set(priorClaim, embedtest.Unit(40))
	unrelated := "Shipping rates through the Suez Canal doubled last quarter."
	fake.Set(unrelated, embedtest.Blend(40, 41, 0.50))

	source := &stubSource{knowledge: historyWith(history.KnownClaim{ID: "h1", Text: priorClaim})}
	detector := newTestDetector(source, fake)

	records, kept := detector.AnalyzeClaims(context.Background(), []*model.Claim{newClaim(unrelated)}, "ch1", "")

	if records[0].Status != model.EvolutionNovel {
		t.Fatalf("Expected novel, got %q", records[0].Status)
	}
	if records[0].MatchedClaimID != "" {
		t.Errorf("Novel claims must not link to history, got %q", records[0].MatchedClaimID)
	}
	if len(kept) != 1 {
		t.Error("Expected novel claim to be kept")
	}
}

func TestAnalyzeClaimsHistoryUnavailableFailsOpen(t *testing.T) {
	fake := embedtest.NewFake()
	source := &stubSource{err: errors.New("service down")}
	detector := newTestDetector(source, fake)

	claims := []*model.Claim{newClaim(priorClaim), newClaim("Another claim entirely about oil.")}
	records, kept := detector.AnalyzeClaims(context.Background(), claims, "ch1", "")

	if len(kept) != 2 {
		t.Fatalf("Expected nothing dropped when history is down, kept %d", len(kept))
	}
	for _, r := range records {
		if r.Status != model.EvolutionNovel {
			t.Errorf("Expected novel fallback, got %q", r.Status)
		}
	}
}

func TestAnalyzeClaimsEmbedFailureFailsOpen(t *testing.T) {
	fake := embedtest.NewFake()
	fake.Err = errors.New("model not loaded")
	source := &stubSource{knowledge: historyWith(history.KnownClaim{ID: "h1", Text: priorClaim})}
	detector := newTestDetector(source, fake)

	claims := []*model.Claim{newClaim(priorClaim)}
	records, kept := detector.AnalyzeClaims(context.Background(), claims, "ch1", "")

	if len(kept) != 1 {
		t.Fatal("Expected embedding failure to drop nothing")
	}
	if records[0].Status != model.EvolutionNovel {
		t.Errorf("Expected novel fallback, got %q", records[0].Status)
	}
	if len(source.mentions) != 0 {
		t.Errorf("Expected no mention bumps, got %v", source.mentions)
	}
}

func TestAnalyzeClaimsNoChannel(t *testing.T) {
	fake := embedtest.NewFake()
	detector := newTestDetector(&stubSource{knowledge: historyWith()}, fake)

	claims := []*model.Claim{newClaim("Any claim.")}
	records, kept := detector.AnalyzeClaims(context.Background(), claims, "", "")

	if len(kept) != 1 || records[0].Status != model.EvolutionNovel {
		t.Errorf("Expected novel passthrough without a channel, got %+v", records)
	}
}
