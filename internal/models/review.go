package models

import "strings"

// Answer is one provider's output for one stage of a review.
type Answer struct {
	Provider string `json:"provider"`
	Content  string `json:"content"`
}

// Rating is one provider's scores for every final answer.
type Rating struct {
	FromProvider string             `json:"fromProvider"`
	Scores       map[string]float64 `json:"scores"`
	Feedback     string             `json:"feedback"`
}

// Result is the outcome of a complete peer-review run.
type Result struct {
	Query            string             `json:"query"`
	Initials         []Answer           `json:"initials"`
	Finals           []Answer           `json:"finals"`
	Ratings          []Rating           `json:"ratings"`
	AggregatedScores map[string]float64 `json:"aggregatedScores"`
	BestAnswer       string             `json:"bestAnswer"`
	BestProvider     string             `json:"bestProvider"`
	FromCache        bool               `json:"fromCache"`
}

// ReviewRequest is the submission accepted by the review service.
type ReviewRequest struct {
	Query  string `json:"query"`
	UserID string `json:"userId,omitempty"`
}

// Clone returns a deep copy so stored results never share maps or slices
// with the caller.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	out.Initials = append([]Answer(nil), r.Initials...)
	out.Finals = append([]Answer(nil), r.Finals...)
	if r.Ratings != nil {
		out.Ratings = make([]Rating, len(r.Ratings))
		for i, rating := range r.Ratings {
			out.Ratings[i] = Rating{
				FromProvider: rating.FromProvider,
				Scores:       copyScores(rating.Scores),
				Feedback:     rating.Feedback,
			}
		}
	}
	out.AggregatedScores = copyScores(r.AggregatedScores)
	return &out
}

// MaxScore returns the highest aggregated score, or 0 when there are none.
func (r *Result) MaxScore() float64 {
	first := true
	var max float64
	for _, s := range r.AggregatedScores {
		if first || s > max {
			max = s
			first = false
		}
	}
	return max
}

// BestScore returns the aggregated score of the winning provider.
func (r *Result) BestScore() float64 {
	return r.AggregatedScores[strings.ToLower(r.BestProvider)]
}

func copyScores(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
