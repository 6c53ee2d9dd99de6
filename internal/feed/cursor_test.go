package feed

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/onnwee/adoptfeed/internal/pet"
	"github.com/onnwee/adoptfeed/internal/ranking"
)

func TestEncodeDecodeCursor(t *testing.T) {
	tests := []struct {
		score float64
		id    string
	}{
		{score: 19797.5, id: "6f1c2b1e-8f43-4d3e-9d6b-3f1b2a9c0e11"},
		{score: 0, id: "a"},
		{score: 19797.912345678901, id: "z"},
		{score: -1.25, id: "with spaces and ünïcode"},
	}
	for _, tt := range tests {
		token := EncodeCursor(tt.score, tt.id)
		if strings.ContainsAny(token, "+/") {
			t.Errorf("token %q is not url-safe", token)
		}
		got, err := DecodeCursor(token)
		if err != nil {
			t.Fatalf("DecodeCursor(%q) error: %v", token, err)
		}
		if got.Score != tt.score || got.ID != tt.id {
			t.Errorf("round trip = %+v, want (%v, %q)", got, tt.score, tt.id)
		}
	}
}

func TestDecodeCursor_AcceptsUnpaddedAndLegacyKey(t *testing.T) {
	token := strings.TrimRight(EncodeCursor(1.5, "abc"), "=")
	if _, err := DecodeCursor(token); err != nil {
		t.Errorf("unpadded token rejected: %v", err)
	}

	legacy := base64.URLEncoding.EncodeToString([]byte(`{"score": 2.5, "pet_id": "p-1"}`))
	got, err := DecodeCursor(legacy)
	if err != nil {
		t.Fatalf("legacy token rejected: %v", err)
	}
	if got.ID != "p-1" || got.Score != 2.5 {
		t.Errorf("unexpected cursor %+v", got)
	}
}

func TestDecodeCursor_Invalid(t *testing.T) {
	valid := EncodeCursor(19797.5, "6f1c2b1e-8f43-4d3e-9d6b-3f1b2a9c0e11")
	b64 := func(s string) string { return base64.URLEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "truncated", token: valid[:len(valid)/2]},
		{name: "corrupted", token: "!!!" + valid[3:]},
		{name: "single char", token: "A"},
		{name: "not json", token: b64("score=1;id=2")},
		{name: "json array", token: b64(`[1, "a"]`)},
		{name: "missing score", token: b64(`{"id": "a"}`)},
		{name: "missing id", token: b64(`{"score": 1}`)},
		{name: "empty id", token: b64(`{"score": 1, "id": ""}`)},
		{name: "score wrong type", token: b64(`{"score": "high", "id": "a"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCursor(tt.token)
			if !errors.Is(err, ErrInvalidCursor) {
				t.Fatalf("expected ErrInvalidCursor, got %v", err)
			}
			var ice *InvalidCursorError
			if !errors.As(err, &ice) {
				t.Errorf("expected *InvalidCursorError, got %T", err)
			}
		})
	}
}

func TestCursorBefore(t *testing.T) {
	c := Cursor{Score: 10, ID: "m"}
	rc := func(score float64, id string) ranking.RankedCandidate {
		return ranking.RankedCandidate{Candidate: pet.Candidate{ID: id}, Score: score}
	}

	tests := []struct {
		name string
		item ranking.RankedCandidate
		want bool
	}{
		{"lower score", rc(9, "z"), true},
		{"higher score", rc(11, "a"), false},
		{"same score lower id", rc(10, "a"), true},
		{"same score higher id", rc(10, "z"), false},
		{"the cursor item itself", rc(10, "m"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Before(tt.item); got != tt.want {
				t.Errorf("Before = %v, want %v", got, tt.want)
			}
		})
	}

	if !c.Matches(rc(10, "m")) || c.Matches(rc(10.5, "m")) {
		t.Error("Matches should require both score and id")
	}
}
