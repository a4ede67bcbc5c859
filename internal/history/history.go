// Package history provides access to the external channel-history service:
// previously defined jargon and previously stored claims per channel. The
// pipeline treats this collaborator as best-effort — when it is down, the
// evolution detector and context builder degrade instead of failing.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// JargonEntry is one previously defined term for a channel.
type JargonEntry struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
	Category   string `json:"category,omitempty"`
}

// KnownClaim is one previously stored claim for a channel.
type KnownClaim struct {
	ID           string  `json:"id"`
	Text         string  `json:"text"`
	Topic        string  `json:"topic,omitempty"`
	EpisodeDate  string  `json:"episode_date,omitempty"`
	MentionCount int     `json:"mention_count,omitempty"`
	Importance   float64 `json:"importance,omitempty"`
}

// ChannelKnowledge bundles everything known about a channel.
type ChannelKnowledge struct {
	Jargon        []JargonEntry           `json:"jargon"`
	ClaimsByTopic map[string][]KnownClaim `json:"claims_by_topic"`
}

// AllClaims flattens the per-topic claim lists.
func (k *ChannelKnowledge) AllClaims() []KnownClaim {
	var out []KnownClaim
	for _, claims := range k.ClaimsByTopic {
		out = append(out, claims...)
	}
	return out
}

// Source fetches channel knowledge and records duplicate mentions.
type Source interface {
	ChannelKnowledge(ctx context.Context, channelID string) (*ChannelKnowledge, error)
	IncrementMention(ctx context.Context, claimID string) error
}

// HTTPSource talks to the channel-history service over HTTP.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates a history client for the given service base URL.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// ChannelKnowledge fetches jargon and claims for a channel.
func (s *HTTPSource) ChannelKnowledge(ctx context.Context, channelID string) (*ChannelKnowledge, error) {
	endpoint := fmt.Sprintf("%s/channels/%s/knowledge", s.baseURL, url.PathEscape(channelID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch channel knowledge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("channel knowledge: unexpected status %d", resp.StatusCode)
	}

	var knowledge ChannelKnowledge
	if err := json.NewDecoder(resp.Body).Decode(&knowledge); err != nil {
		return nil, fmt.Errorf("decode channel knowledge: %w", err)
	}
	return &knowledge, nil
}

// IncrementMention bumps the mention count of a stored claim after a
// duplicate was dropped from extraction.
func (s *HTTPSource) IncrementMention(ctx context.Context, claimID string) error {
	endpoint := fmt.Sprintf("%s/claims/%s/mentions", s.baseURL, url.PathEscape(claimID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("increment mention: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("increment mention: unexpected status %d", resp.StatusCode)
	}
	return nil
}
