package peerreview

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/beartec-jpg/Ai-Peer-review/internal/common/validation"
	"github.com/beartec-jpg/Ai-Peer-review/internal/providers/roster"
)

type ratingOutcome int

const (
	ratingWellFormed ratingOutcome = iota
	ratingRawText
)

const (
	minScore = 0
	maxScore = 10
)

// decodedRating is the tagged result of reading a rater's reply. Err is set
// for ratingRawText and wraps ErrRatingParse.
type decodedRating struct {
	Outcome  ratingOutcome
	Scores   map[string]float64
	Feedback string
	Err      error
}

var ratingSchema = validation.MustSchema(validation.RatingSchema)

// decodeRating treats raw as untrusted input. A reply that is not a score
// object yields empty scores with the whole reply kept as feedback. Scores
// outside 0..10 are clamped.
func decodeRating(raw string) decodedRating {
	fallback := func(cause error) decodedRating {
		return decodedRating{
			Outcome:  ratingRawText,
			Scores:   map[string]float64{},
			Feedback: raw,
			Err:      fmt.Errorf("%w: %v", ErrRatingParse, cause),
		}
	}

	body := []byte(stripCodeFence(raw))
	if res := ratingSchema.ValidateBytes(body); !res.Valid {
		return fallback(res)
	}

	var parsed struct {
		Scores   map[string]float64 `json:"scores"`
		Feedback string             `json:"feedback"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fallback(err)
	}

	scores := make(map[string]float64, len(parsed.Scores))
	for k, v := range parsed.Scores {
		scores[roster.ProviderKey(k)] = clampScore(v)
	}
	return decodedRating{Outcome: ratingWellFormed, Scores: scores, Feedback: parsed.Feedback}
}

func clampScore(v float64) float64 {
	switch {
	case v < minScore:
		return minScore
	case v > maxScore:
		return maxScore
	}
	return v
}

// stripCodeFence unwraps a reply of the form ```json ... ```.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.Contains(s[:nl], "{") {
		s = s[nl+1:]
	}
	return strings.TrimSpace(s)
}

// completeScores keeps only roster keys and fills any the rater omitted with 0.
func completeScores(scores map[string]float64, keys []string) map[string]float64 {
	out := make(map[string]float64, len(keys))
	for _, k := range keys {
		out[k] = scores[k]
	}
	return out
}
