package history

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPSourceChannelKnowledge(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		json.NewEncoder(w).Encode(ChannelKnowledge{
			Jargon: []JargonEntry{{Term: "term premium", Definition: "Extra yield for duration risk"}},
			ClaimsByTopic: map[string][]KnownClaim{
				"rates": {{ID: "c1", Text: "The Fed will cut rates in March.", MentionCount: 3}},
			},
		})
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL, time.Second)
	knowledge, err := source.ChannelKnowledge(context.Background(), "channel one")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if gotPath != "/channels/channel%20one/knowledge" {
		t.Errorf("Expected escaped channel path, got %q", gotPath)
	}
	if len(knowledge.Jargon) != 1 || knowledge.Jargon[0].Term != "term premium" {
		t.Errorf("Unexpected jargon %v", knowledge.Jargon)
	}
	claims := knowledge.AllClaims()
	if len(claims) != 1 || claims[0].ID != "c1" {
		t.Errorf("Unexpected claims %v", claims)
	}
}

func TestHTTPSourceChannelKnowledgeErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL, time.Second)
	if _, err := source.ChannelKnowledge(context.Background(), "ch1"); err == nil {
		t.Fatal("Expected error on 500 status")
	}
}

func TestHTTPSourceIncrementMention(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	source := NewHTTPSource(server.URL, time.Second)
	if err := source.IncrementMention(context.Background(), "claim-1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/claims/claim-1/mentions" {
		t.Errorf("Unexpected request %s %s", gotMethod, gotPath)
	}
}

func TestAllClaimsFlattens(t *testing.T) {
	k := &ChannelKnowledge{ClaimsByTopic: map[string][]KnownClaim{
		"rates":  {{ID: "a"}, {ID: "b"}},
		"energy": {{ID: "c"}},
	}}
	if got := len(k.AllClaims()); got != 3 {
		t.Errorf("Expected 3 claims, got %d", got)
	}
}
