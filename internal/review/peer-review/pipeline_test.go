package peerreview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/beartec-jpg/Ai-Peer-review/internal/common/errors"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/retry"
	"github.com/beartec-jpg/Ai-Peer-review/internal/providers/roster"
)

// ==========================
// Test helpers
// ==========================

type fakeModel struct {
	name   string
	rating string

	// override, when it returns handled=true, replaces the scripted reply.
	override func(ctx context.Context, stage string, call int) (out string, err error, handled bool)

	mu      sync.Mutex
	calls   map[string]int
	prompts map[string][]string
}

func newFakeModel(name, rating string) *fakeModel {
	return &fakeModel{
		name:    name,
		rating:  rating,
		calls:   map[string]int{},
		prompts: map[string][]string{},
	}
}

func stageOf(prompt string) string {
	switch {
	case strings.Contains(prompt, "Output JSON"):
		return StageRate
	case strings.Contains(prompt, "Peer review task"):
		return StageCrossReview
	default:
		return StageGenerate
	}
}

func (f *fakeModel) Invoke(ctx context.Context, prompt string) (string, error) {
	stage := stageOf(prompt)

	f.mu.Lock()
	f.calls[stage]++
	call := f.calls[stage]
	f.prompts[stage] = append(f.prompts[stage], prompt)
	f.mu.Unlock()

	if f.override != nil {
		if out, err, handled := f.override(ctx, stage, call); handled {
			return out, err
		}
	}

	switch stage {
	case StageRate:
		return f.rating, nil
	case StageCrossReview:
		return "final-" + f.name, nil
	default:
		return "initial-" + f.name, nil
	}
}

func (f *fakeModel) callCount(stage string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[stage]
}

func (f *fakeModel) lastPrompt(stage string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ps := f.prompts[stage]
	if len(ps) == 0 {
		return ""
	}
	return ps[len(ps)-1]
}

func createTestConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Sleep:       retry.NoSleep,
	}
}

func newTestPipeline(t *testing.T, config *Config, models ...*fakeModel) *Pipeline {
	t.Helper()
	members := make([]roster.Member, len(models))
	for i, m := range models {
		members[i] = roster.Member{Name: m.name, Invoker: m}
	}
	r, err := roster.New(members...)
	require.NoError(t, err)
	return NewPipeline(config, r, nil)
}

const uniformRating = `{"scores": {"a": 8, "b": 9, "c": 7}, "feedback": "b handles the empty slice"}`

// ==========================
// Happy path
// ==========================

func TestRun_BinarySearchScenario(t *testing.T) {
	a := newFakeModel("a", uniformRating)
	b := newFakeModel("b", uniformRating)
	c := newFakeModel("c", uniformRating)
	p := newTestPipeline(t, createTestConfig(), a, b, c)

	result, err := p.Run(context.Background(), "Write binary search in Go")
	require.NoError(t, err)

	assert.Equal(t, "Write binary search in Go", result.Query)
	require.Len(t, result.Initials, 3)
	require.Len(t, result.Finals, 3)
	require.Len(t, result.Ratings, 3)
	for i, name := range []string{"a", "b", "c"} {
		assert.Equal(t, name, result.Initials[i].Provider)
		assert.Equal(t, "initial-"+name, result.Initials[i].Content)
		assert.Equal(t, "final-"+name, result.Finals[i].Content)
		assert.Equal(t, name, result.Ratings[i].FromProvider)
	}

	assert.Equal(t, map[string]float64{"a": 8, "b": 9, "c": 7}, result.AggregatedScores)
	assert.Equal(t, "b", result.BestProvider)
	assert.Equal(t, "final-b", result.BestAnswer)
	assert.False(t, result.FromCache)

	for _, m := range []*fakeModel{a, b, c} {
		assert.Equal(t, 1, m.callCount(StageGenerate))
		assert.Equal(t, 1, m.callCount(StageCrossReview))
		assert.Equal(t, 1, m.callCount(StageRate))
	}
}

func TestRun_TieGoesToFirstInRosterOrder(t *testing.T) {
	rating := `{"scores": {"a": 9, "b": 9, "c": 8}, "feedback": ""}`
	p := newTestPipeline(t, createTestConfig(),
		newFakeModel("a", rating), newFakeModel("b", rating), newFakeModel("c", rating))

	result, err := p.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "a", result.BestProvider)
	assert.Equal(t, "final-a", result.BestAnswer)
}

func TestRun_MixedCaseNamesUseLowercaseKeys(t *testing.T) {
	rating := `{"scores": {"Claude": 6, "GPT": 9, "gemini": 7}}`
	p := newTestPipeline(t, createTestConfig(),
		newFakeModel("Claude", rating), newFakeModel("GPT", rating), newFakeModel("Gemini", rating))

	result, err := p.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"claude": 6, "gpt": 9, "gemini": 7}, result.AggregatedScores)
	assert.Equal(t, "gpt", result.BestProvider)
	assert.Equal(t, "final-GPT", result.BestAnswer)
}

// ==========================
// Rating decode
// ==========================

func TestRun_MalformedRatingDegrades(t *testing.T) {
	a := newFakeModel("a", uniformRating)
	b := newFakeModel("b", uniformRating)
	c := newFakeModel("c", "I think b is clearly the best answer here.")
	p := newTestPipeline(t, createTestConfig(), a, b, c)

	result, err := p.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Empty(t, result.Ratings[2].Scores)
	assert.NotNil(t, result.Ratings[2].Scores)
	assert.Equal(t, "I think b is clearly the best answer here.", result.Ratings[2].Feedback)

	assert.InDelta(t, 16.0/3, result.AggregatedScores["a"], 1e-9)
	assert.InDelta(t, 6.0, result.AggregatedScores["b"], 1e-9)
	assert.InDelta(t, 14.0/3, result.AggregatedScores["c"], 1e-9)
	assert.Equal(t, "b", result.BestProvider)
}

func TestRun_AllRatingsMalformedFallsBackToFirst(t *testing.T) {
	p := newTestPipeline(t, createTestConfig(),
		newFakeModel("a", "nope"), newFakeModel("b", "nope"), newFakeModel("c", "nope"))

	result, err := p.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"a": 0, "b": 0, "c": 0}, result.AggregatedScores)
	assert.Equal(t, "a", result.BestProvider)
	assert.Equal(t, "final-a", result.BestAnswer)
}

func TestRun_MissingScoresAreFilledWithZero(t *testing.T) {
	partial := `{"scores": {"a": 10, "zed": 4}, "feedback": "only rated a"}`
	p := newTestPipeline(t, createTestConfig(),
		newFakeModel("a", partial), newFakeModel("b", partial), newFakeModel("c", partial))

	result, err := p.Run(context.Background(), "q")
	require.NoError(t, err)
	for _, r := range result.Ratings {
		assert.Equal(t, map[string]float64{"a": 10, "b": 0, "c": 0}, r.Scores)
	}
}

func TestDecodeRating(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		outcome  ratingOutcome
		scores   map[string]float64
		feedback string
	}{
		{
			name:     "plain json",
			raw:      `{"scores":{"claude":9},"feedback":"fine"}`,
			outcome:  ratingWellFormed,
			scores:   map[string]float64{"claude": 9},
			feedback: "fine",
		},
		{
			name:     "fenced json",
			raw:      "```json\n{\"scores\":{\"GPT\":7.5}}\n```",
			outcome:  ratingWellFormed,
			scores:   map[string]float64{"gpt": 7.5},
			feedback: "",
		},
		{
			name:     "prose",
			raw:      "All three are fine.",
			outcome:  ratingRawText,
			scores:   map[string]float64{},
			feedback: "All three are fine.",
		},
		{
			name:     "json without scores",
			raw:      `{"feedback":"forgot the numbers"}`,
			outcome:  ratingRawText,
			scores:   map[string]float64{},
			feedback: `{"feedback":"forgot the numbers"}`,
		},
		{
			name:     "scores out of range are clamped",
			raw:      `{"scores":{"claude":11,"gpt":-2,"gemini":7},"feedback":"generous"}`,
			outcome:  ratingWellFormed,
			scores:   map[string]float64{"claude": 10, "gpt": 0, "gemini": 7},
			feedback: "generous",
		},
		{
			name:     "non-numeric score",
			raw:      `{"scores":{"claude":"nine"}}`,
			outcome:  ratingRawText,
			scores:   map[string]float64{},
			feedback: `{"scores":{"claude":"nine"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decodeRating(tt.raw)
			assert.Equal(t, tt.outcome, got.Outcome)
			assert.Equal(t, tt.scores, got.Scores)
			assert.Equal(t, tt.feedback, got.Feedback)
			if tt.outcome == ratingRawText {
				assert.ErrorIs(t, got.Err, ErrRatingParse)
				assert.Equal(t, apperrors.ErrCodeRatingParseFailed, apperrors.CodeOf(got.Err))
			} else {
				assert.NoError(t, got.Err)
			}
		})
	}
}

// ==========================
// Prompts
// ==========================

func TestRun_CrossReviewUsesPeerOrder(t *testing.T) {
	a := newFakeModel("a", uniformRating)
	b := newFakeModel("b", uniformRating)
	c := newFakeModel("c", uniformRating)
	p := newTestPipeline(t, createTestConfig(), a, b, c)

	_, err := p.Run(context.Background(), "sort it")
	require.NoError(t, err)

	prompt := b.lastPrompt(StageCrossReview)
	assert.Contains(t, prompt, "Original query: sort it\n\n")
	assert.Contains(t, prompt, "Your initial answer: initial-b\n\n")
	assert.Contains(t, prompt, "Peer 1 answer: initial-c\nPeer 2 answer: initial-a\n")
	assert.True(t, strings.HasSuffix(prompt, "Output only your refined final answer."))

	rating := a.lastPrompt(StageRate)
	assert.Contains(t, rating, "Three final answers:\n1. a: final-a\n2. b: final-b\n3. c: final-c\n")
	assert.Contains(t, rating, `Output JSON: {"scores": {"a": 10, "b": 8, "c": 9}`)

	assert.Contains(t, a.lastPrompt(StageGenerate), "efficient solution to: sort it.\n")
}

// ==========================
// Failures
// ==========================

func TestRun_EmptyQuery(t *testing.T) {
	a := newFakeModel("a", uniformRating)
	p := newTestPipeline(t, createTestConfig(), a, newFakeModel("b", uniformRating))

	_, err := p.Run(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Equal(t, "Query cannot be empty", err.Error())
	assert.Equal(t, 0, a.callCount(StageGenerate))
}

func TestRun_TransientFailureRecovers(t *testing.T) {
	a := newFakeModel("a", uniformRating)
	a.override = func(ctx context.Context, stage string, call int) (string, error, bool) {
		if stage == StageGenerate && call == 1 {
			return "", errors.New("503 overloaded"), true
		}
		return "", nil, false
	}
	p := newTestPipeline(t, createTestConfig(), a, newFakeModel("b", uniformRating), newFakeModel("c", uniformRating))

	result, err := p.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "initial-a", result.Initials[0].Content)
	assert.Equal(t, 2, a.callCount(StageGenerate))
}

func TestRun_EmptyReplyIsRetried(t *testing.T) {
	b := newFakeModel("b", uniformRating)
	b.override = func(ctx context.Context, stage string, call int) (string, error, bool) {
		if stage == StageCrossReview && call < 3 {
			return "  \n", nil, true
		}
		return "", nil, false
	}
	p := newTestPipeline(t, createTestConfig(), newFakeModel("a", uniformRating), b, newFakeModel("c", uniformRating))

	result, err := p.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "final-b", result.Finals[1].Content)
	assert.Equal(t, 3, b.callCount(StageCrossReview))
}

func TestRun_PersistentFailureAborts(t *testing.T) {
	tests := []struct {
		name  string
		stage string
	}{
		{"generate", StageGenerate},
		{"cross-review", StageCrossReview},
		{"rate", StageRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			boom := errors.New("provider down")
			c := newFakeModel("c", uniformRating)
			c.override = func(ctx context.Context, stage string, call int) (string, error, bool) {
				if stage == tt.stage {
					return "", boom, true
				}
				return "", nil, false
			}
			p := newTestPipeline(t, createTestConfig(), newFakeModel("a", uniformRating), newFakeModel("b", uniformRating), c)

			result, err := p.Run(context.Background(), "q")
			assert.Nil(t, result)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvocationFailed)
			assert.ErrorIs(t, err, boom)
			assert.NotErrorIs(t, err, ErrPipelineTimeout)
			assert.True(t, strings.HasPrefix(err.Error(), "AI sequence error: "), err.Error())
			assert.Equal(t, 3, c.callCount(tt.stage))

			var se *apperrors.StandardError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, apperrors.ErrCodeInvocationFailed, se.Code)
			assert.Equal(t, "c", se.Metadata["provider"])
			assert.True(t, se.Retryable)
		})
	}
}

func TestRun_PipelineTimeout(t *testing.T) {
	slow := newFakeModel("slow", uniformRating)
	slow.override = func(ctx context.Context, stage string, call int) (string, error, bool) {
		<-ctx.Done()
		return "", ctx.Err(), true
	}

	config := createTestConfig()
	config.Timeout = 30 * time.Millisecond
	p := newTestPipeline(t, config, newFakeModel("a", uniformRating), slow)

	result, err := p.Run(context.Background(), "q")
	assert.Nil(t, result)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPipelineTimeout)
	assert.NotErrorIs(t, err, ErrInvocationFailed)
	assert.Equal(t, apperrors.ErrCodePipelineTimeout, apperrors.CodeOf(err))
	assert.True(t, strings.HasPrefix(err.Error(), "AI sequence timed out: "), err.Error())
}

// ==========================
// Observer
// ==========================

type recordingObserver struct {
	mu       sync.Mutex
	stages   []string
	calls    map[string]int
	unparsed map[string]error
}

func (r *recordingObserver) RatingUnparsed(ctx context.Context, rater string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unparsed == nil {
		r.unparsed = map[string]error{}
	}
	r.unparsed[rater] = err
}

func (r *recordingObserver) StageStarted(ctx context.Context, stage, provider string) context.Context {
	return ctx
}

func (r *recordingObserver) StageFinished(ctx context.Context, stage, provider string, d time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if provider == "" {
		r.stages = append(r.stages, stage)
		return
	}
	if r.calls == nil {
		r.calls = map[string]int{}
	}
	r.calls[provider]++
}

func TestRun_ObserverSeesEveryStage(t *testing.T) {
	members := []roster.Member{
		{Name: "a", Invoker: newFakeModel("a", uniformRating)},
		{Name: "b", Invoker: newFakeModel("b", uniformRating)},
	}
	r, err := roster.New(members...)
	require.NoError(t, err)

	obs := &recordingObserver{}
	p := NewPipeline(createTestConfig(), r, Observers{NopObserver{}, obs})

	_, err = p.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, []string{StageGenerate, StageCrossReview, StageRate, StageAggregate, StagePipeline}, obs.stages)
	assert.Equal(t, map[string]int{"a": 3, "b": 3}, obs.calls)
}

func TestRun_ObserverHearsAboutRawTextRatings(t *testing.T) {
	members := []roster.Member{
		{Name: "a", Invoker: newFakeModel("a", uniformRating)},
		{Name: "B", Invoker: newFakeModel("b", "b is best, no JSON from me")},
	}
	r, err := roster.New(members...)
	require.NoError(t, err)

	obs := &recordingObserver{}
	p := NewPipeline(createTestConfig(), r, Observers{NopObserver{}, obs})

	result, err := p.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, result.Ratings[1].Scores)

	require.Len(t, obs.unparsed, 1)
	require.Contains(t, obs.unparsed, "b")
	assert.ErrorIs(t, obs.unparsed["b"], ErrRatingParse)
	assert.Equal(t, apperrors.ErrCodeRatingParseFailed, apperrors.CodeOf(obs.unparsed["b"]))
}
