package models

import "time"

// FollowupHistoryItem is one question/answer turn of a follow-up chain.
type FollowupHistoryItem struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// FollowupContext pins a conversation to the provider that won a review.
type FollowupContext struct {
	OriginalQuery  string                `json:"originalQuery"`
	ChosenAnswer   string                `json:"chosenAnswer"`
	ChosenProvider string                `json:"chosenProvider"`
	Score          float64               `json:"score"`
	FollowupChain  []FollowupHistoryItem `json:"followupChain"`
}

// Clone copies the context including its chain.
func (c FollowupContext) Clone() FollowupContext {
	c.FollowupChain = append([]FollowupHistoryItem(nil), c.FollowupChain...)
	return c
}

// FollowupRequest is the body accepted by the follow-up endpoint.
type FollowupRequest struct {
	FollowupQuery string          `json:"followupQuery"`
	Context       FollowupContext `json:"context"`
}

// FollowupResult is the answer to one follow-up turn.
type FollowupResult struct {
	FollowupQuery string          `json:"followupQuery"`
	Answer        string          `json:"answer"`
	Provider      string          `json:"provider"`
	EstimatedCost float64         `json:"estimatedCost"`
	Timestamp     time.Time       `json:"timestamp"`
	Context       FollowupContext `json:"context"`
}

// NewFollowupContext derives the first context of a chain from a result.
func NewFollowupContext(result *Result) FollowupContext {
	return FollowupContext{
		OriginalQuery:  result.Query,
		ChosenAnswer:   result.BestAnswer,
		ChosenProvider: result.BestProvider,
		Score:          result.BestScore(),
		FollowupChain:  []FollowupHistoryItem{},
	}
}
