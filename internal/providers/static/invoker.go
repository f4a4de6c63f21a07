// Package static provides a scripted, in-process invoker for running the
// service without provider credentials.
package static

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
)

// Invoker answers deterministically. Prompts that ask for JSON output get a
// score object covering Keys.
type Invoker struct {
	Name string
	Keys []string
}

func New(name string, keys []string) *Invoker {
	return &Invoker{Name: name, Keys: append([]string(nil), keys...)}
}

func (s *Invoker) Invoke(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch {
	case strings.Contains(prompt, "Output JSON"):
		return s.rating(prompt)
	case strings.Contains(prompt, "Peer review task"):
		return fmt.Sprintf("[%s, refined] %s", s.Name, summarize(prompt)), nil
	default:
		return fmt.Sprintf("[%s] %s", s.Name, summarize(prompt)), nil
	}
}

func (s *Invoker) rating(prompt string) (string, error) {
	scores := make(map[string]float64, len(s.Keys))
	for _, key := range s.Keys {
		h := fnv.New32a()
		_, _ = h.Write([]byte(s.Name + "|" + key + "|" + prompt))
		scores[key] = float64(6 + h.Sum32()%4)
	}
	out, err := json.Marshal(map[string]interface{}{
		"scores":   scores,
		"feedback": fmt.Sprintf("Offline rating from %s.", s.Name),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// summarize echoes the first non-empty prompt line, shortened.
func summarize(prompt string) string {
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > 160 {
			line = line[:160] + "..."
		}
		return line
	}
	return "(empty prompt)"
}
