package feed

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/onnwee/adoptfeed/internal/ranking"
)

// ErrInvalidCursor is returned when a continuation token cannot be decoded.
var ErrInvalidCursor = errors.New("invalid cursor")

// InvalidCursorError describes why a cursor was rejected.
type InvalidCursorError struct {
	Reason string
}

func (e *InvalidCursorError) Error() string {
	return fmt.Sprintf("invalid cursor: %s", e.Reason)
}

func (e *InvalidCursorError) Unwrap() error { return ErrInvalidCursor }

// Cursor is the last-seen position in the feed's global order.
type Cursor struct {
	Score float64 `json:"score"`
	ID    string  `json:"id"`
}

type cursorPayload struct {
	Score *float64 `json:"score"`
	ID    *string  `json:"id"`
	PetID *string  `json:"pet_id"`
}

// EncodeCursor returns an opaque URL-safe token for (score, id).
// Tokens are neither signed nor versioned.
func EncodeCursor(score float64, id string) string {
	data, _ := json.Marshal(Cursor{Score: score, ID: id})
	return base64.URLEncoding.EncodeToString(data)
}

// DecodeCursor parses a token produced by EncodeCursor. Padding is optional.
// Any malformed input yields an *InvalidCursorError.
func DecodeCursor(token string) (Cursor, error) {
	token = strings.TrimRight(strings.TrimSpace(token), "=")
	if token == "" {
		return Cursor{}, &InvalidCursorError{Reason: "empty token"}
	}

	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, &InvalidCursorError{Reason: "malformed base64"}
	}

	var p cursorPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Cursor{}, &InvalidCursorError{Reason: "malformed payload"}
	}

	// pet_id is accepted for tokens issued before the key was renamed.
	id := p.ID
	if id == nil {
		id = p.PetID
	}
	if p.Score == nil || id == nil || *id == "" {
		return Cursor{}, &InvalidCursorError{Reason: "missing score or id"}
	}
	return Cursor{Score: *p.Score, ID: *id}, nil
}

// Encode returns the token for c.
func (c Cursor) Encode() string {
	return EncodeCursor(c.Score, c.ID)
}

// Before reports whether rc sorts strictly after the cursor position in the
// global order, i.e. whether it belongs to a later page.
func (c Cursor) Before(rc ranking.RankedCandidate) bool {
	return rc.Score < c.Score || (rc.Score == c.Score && rc.Candidate.ID < c.ID)
}

// Matches reports whether rc is the item the cursor was taken from.
func (c Cursor) Matches(rc ranking.RankedCandidate) bool {
	return rc.Candidate.ID == c.ID && rc.Score == c.Score
}
