package followup

import (
	"fmt"
	"strings"

	"github.com/beartec-jpg/Ai-Peer-review/internal/models"
)

func buildPrompt(fctx models.FollowupContext, question string) string {
	var b strings.Builder
	b.WriteString("You are an expert coding assistant. You previously answered this query:\n\n")
	fmt.Fprintf(&b, "**Original Query:** %s\n\n", fctx.OriginalQuery)
	fmt.Fprintf(&b, "**Your Answer (Score: %.1f/10):**\n%s\n\n", fctx.Score, fctx.ChosenAnswer)

	if len(fctx.FollowupChain) > 0 {
		b.WriteString("**Previous Follow-up Conversation:**\n")
		for i, item := range fctx.FollowupChain {
			fmt.Fprintf(&b, "%d. Q: %s\n", i+1, item.Question)
			fmt.Fprintf(&b, "   A: %s\n\n", item.Answer)
		}
	}

	fmt.Fprintf(&b, "**New Follow-up Question:** %s\n\n", question)
	b.WriteString("Please provide a clear, accurate, and complete answer to this follow-up question. ")
	b.WriteString("Build upon your previous answer and the conversation history. ")
	b.WriteString("Include code snippets if relevant, and explain any changes or additions clearly.")
	return b.String()
}
