package peerreview

import (
	"fmt"
	"strings"

	"github.com/beartec-jpg/Ai-Peer-review/internal/models"
	"github.com/beartec-jpg/Ai-Peer-review/internal/providers/roster"
)

const (
	reviewTask = "Peer review task: Compare these to your own. Refine your answer for better accuracy, " +
		"completeness, efficiency, and bug-free code. Highlight improvements or disagreements. " +
		"Output only your refined final answer."

	ratingCriteria = "Rate each on 1-10 scale for: correctness (accuracy to query), " +
		"efficiency (optimal code), innovation (creative solutions)."
)

var countWords = []string{"Zero", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine", "Ten"}

func initialPrompt(query string) string {
	return fmt.Sprintf("You are an expert coding assistant. Provide a complete, accurate, and efficient solution to: %s.\n"+
		"Include code snippets, explanations, and edge cases. Output only the answer.", query)
}

// peerReviewPrompt labels peers positionally in the order given.
func peerReviewPrompt(query, own string, peers []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original query: %s\n\n", query)
	fmt.Fprintf(&b, "Your initial answer: %s\n\n", own)
	for j, peer := range peers {
		fmt.Fprintf(&b, "Peer %d answer: %s\n", j+1, peer)
	}
	b.WriteString("\n")
	b.WriteString(reviewTask)
	return b.String()
}

// ratingPrompt lists every final by roster position and asks for scores
// keyed by provider key.
func ratingPrompt(query string, finals []models.Answer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original query: %s\n\n", query)
	fmt.Fprintf(&b, "%s final answers:\n", countWord(len(finals)))
	for i, f := range finals {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, f.Provider, f.Content)
	}
	b.WriteString("\n")
	b.WriteString(ratingCriteria)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Output JSON: {\"scores\": {%s}, \"feedback\": \"Brief overall thoughts.\"}\n", exampleScores(finals))
	return b.String()
}

func exampleScores(finals []models.Answer) string {
	examples := []int{10, 8, 9}
	parts := make([]string, len(finals))
	for i, f := range finals {
		parts[i] = fmt.Sprintf("%q: %d", roster.ProviderKey(f.Provider), examples[i%len(examples)])
	}
	return strings.Join(parts, ", ")
}

func countWord(n int) string {
	if n >= 0 && n < len(countWords) {
		return countWords[n]
	}
	return fmt.Sprintf("%d", n)
}
