package peerreview

import (
	"github.com/beartec-jpg/Ai-Peer-review/internal/models"
	"github.com/beartec-jpg/Ai-Peer-review/internal/providers/roster"
)

type aggregation struct {
	Scores       map[string]float64
	BestProvider string
	BestAnswer   string
}

// aggregate averages every rater's score per provider key (missing = 0) and
// picks the first maximal key in roster order.
func aggregate(keys []string, finals []models.Answer, ratings []models.Rating) aggregation {
	scores := make(map[string]float64, len(keys))
	for _, k := range keys {
		var sum float64
		for _, r := range ratings {
			sum += r.Scores[k]
		}
		if len(ratings) > 0 {
			scores[k] = sum / float64(len(ratings))
		} else {
			scores[k] = 0
		}
	}

	best := ""
	for _, k := range keys {
		if best == "" || scores[k] > scores[best] {
			best = k
		}
	}

	var answer string
	found := false
	for _, f := range finals {
		if roster.ProviderKey(f.Provider) == best {
			answer = f.Content
			found = true
			break
		}
	}
	if !found && len(finals) > 0 {
		answer = finals[0].Content
	}

	return aggregation{Scores: scores, BestProvider: best, BestAnswer: answer}
}
