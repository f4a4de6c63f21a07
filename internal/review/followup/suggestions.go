package followup

import (
	"strings"

	"github.com/beartec-jpg/Ai-Peer-review/internal/models"
)

const maxSuggestions = 3

type suggestionRule struct {
	keywords    []string
	suggestions []string
}

// Order sets precedence once the list is truncated.
var suggestionRules = []suggestionRule{
	{
		keywords: []string{"hook", "usehook"},
		suggestions: []string{
			"How do I handle cleanup in this hook?",
			"Can you show me how to test this hook?",
		},
	},
	{
		keywords: []string{"async", "await"},
		suggestions: []string{
			"How should I handle errors in this async code?",
			"Can you add loading states?",
		},
	},
	{
		keywords: []string{"component"},
		suggestions: []string{
			"How can I make this component more reusable?",
			"Can you add TypeScript types for the props?",
		},
	},
	{
		keywords: []string{"api", "endpoint"},
		suggestions: []string{
			"How do I add authentication to this endpoint?",
			"Can you show me how to add rate limiting?",
		},
	},
}

var genericSuggestions = []string{
	"Can you explain this in more detail?",
	"How would I optimize this for performance?",
	"Are there any edge cases I should consider?",
}

// Suggestions derives up to three follow-up questions from the chosen
// answer's text.
func Suggestions(fctx models.FollowupContext) []string {
	answer := strings.ToLower(fctx.ChosenAnswer)

	var out []string
	for _, rule := range suggestionRules {
		if containsAny(answer, rule.keywords) {
			out = append(out, rule.suggestions...)
		}
	}
	if len(out) == 0 {
		out = append(out, genericSuggestions...)
	}
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
