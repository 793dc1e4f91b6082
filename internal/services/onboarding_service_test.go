package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exampattern/internal/models/request_models"
	"exampattern/internal/models/response_models"
	"exampattern/internal/repositories"
	"exampattern/pkg/utils"
)

type fakeAdvisor struct {
	calls int
	err   error
	block bool
}

func (f *fakeAdvisor) ValidateExam(ctx context.Context, examName, _, _ string) (*response_models.ExamValidationResponse, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &response_models.ExamValidationResponse{IsValid: true, SuggestedName: examName}, nil
}

func (f *fakeAdvisor) AnalyzeSubject(_ context.Context, subject, examName, _ string) (*response_models.SubjectAnalysisResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &response_models.SubjectAnalysisResponse{Subject: subject, ExamName: examName, Priority: "High"}, nil
}

func TestValidateExamDebitsAfterSuccess(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)
	svc := NewOnboardingService(ledger, &fakeAdvisor{}, time.Second)

	res, err := svc.ValidateExam(ctx, "u1", request_models.ValidateExamRequest{ExamName: " JEE Main "})
	require.NoError(t, err)
	assert.True(t, res.Result.IsValid)
	assert.Equal(t, "JEE Main", res.Result.SuggestedName)
	assert.EqualValues(t, 10, res.TokensSpent)
	assert.EqualValues(t, 40, res.Remaining)

	history, err := ledger.UsageHistory(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, string(ActionExamValidation), history[0].ActionType)
	assert.Equal(t, "JEE Main", history[0].ExamType)
}

func TestAnalyzeSubjectTagsUsage(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)
	svc := NewOnboardingService(ledger, &fakeAdvisor{}, 0)

	res, err := svc.AnalyzeSubject(ctx, "u1", request_models.SubjectAnalysisRequest{Subject: "Physics", ExamName: "NEET"})
	require.NoError(t, err)
	assert.Equal(t, "Physics", res.Result.Subject)
	assert.EqualValues(t, 15, res.TokensSpent)
	assert.EqualValues(t, 35, res.Remaining)

	history, err := ledger.UsageHistory(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, "Physics", history[0].Subject)
	assert.Equal(t, "NEET", history[0].ExamType)
}

func TestGatedActionFailureDoesNotDebit(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)
	advisor := &fakeAdvisor{err: errors.Join(utils.ErrUnexpectedBehaviorOfAI, errors.New("boom"))}
	svc := NewOnboardingService(ledger, advisor, time.Second)

	_, err := svc.ValidateExam(ctx, "u1", request_models.ValidateExamRequest{ExamName: "SAT"})
	assert.ErrorIs(t, err, utils.ErrUnexpectedBehaviorOfAI)

	b, err := ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 50, b.Available)
	assert.EqualValues(t, 0, b.Used)
}

func TestGatedActionTimeoutDoesNotDebit(t *testing.T) {
	ctx := context.Background()
	ledger := newTestLedger(t)
	svc := NewOnboardingService(ledger, &fakeAdvisor{block: true}, 20*time.Millisecond)

	_, err := svc.ValidateExam(ctx, "u1", request_models.ValidateExamRequest{ExamName: "SAT"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	b, err := ledger.GetBalance(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 50, b.Available)
}

func TestGatedActionInsufficientSkipsModel(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedgerService(repositories.NewInMemoryLedgerStore(), DefaultCostTable(), 12)
	advisor := &fakeAdvisor{}
	svc := NewOnboardingService(ledger, advisor, time.Second)

	_, err := svc.AnalyzeSubject(ctx, "u1", request_models.SubjectAnalysisRequest{Subject: "Maths", ExamName: "GRE"})
	var insufficient *utils.InsufficientTokensError
	require.True(t, errors.As(err, &insufficient))
	assert.EqualValues(t, 15, insufficient.Required)
	assert.EqualValues(t, 12, insufficient.Available)
	assert.Zero(t, advisor.calls)
}

func TestValidateExamRequiresName(t *testing.T) {
	svc := NewOnboardingService(newTestLedger(t), &fakeAdvisor{}, time.Second)

	_, err := svc.ValidateExam(context.Background(), "u1", request_models.ValidateExamRequest{ExamName: "  "})
	assert.ErrorIs(t, err, utils.ErrInvalidInput)
}

type scriptedCompleter struct {
	reply string
	err   error
}

func (s scriptedCompleter) Complete(context.Context, string, float32) (string, error) {
	return s.reply, s.err
}

func (s scriptedCompleter) Name() string { return "scripted" }

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, true},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"prose", "Sure! Here it is: {\"a\":1} hope that helps", `{"a":1}`, true},
		{"comments", "{\n// note\n\"a\": 1 /* inline */\n}", "{\n\n\"a\": 1 \n}", true},
		{"none", "I cannot help with that", "", false},
		{"broken", `{"a":`, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := extractJSON(tc.raw)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLLMAdvisorParsesReplies(t *testing.T) {
	ctx := context.Background()
	a := &llmAdvisor{llm: scriptedCompleter{reply: "```json\n{\"isValid\":true,\"suggestedName\":\"NEET\",\"streams\":[\"Medical\"],\"needsClarification\":false}\n```"}}

	v, err := a.ValidateExam(ctx, "neet", "12", "")
	require.NoError(t, err)
	assert.True(t, v.IsValid)
	assert.Equal(t, "NEET", v.SuggestedName)
	assert.Equal(t, []string{"Medical"}, v.Streams)

	a = &llmAdvisor{llm: scriptedCompleter{reply: `{"difficulty":140,"examWeight":25,"topicVolume":8,"performance":-3,"priority":"high","successRate":75}`}}
	s, err := a.AnalyzeSubject(ctx, "Biology", "NEET", "12")
	require.NoError(t, err)
	assert.EqualValues(t, 100, s.Difficulty)
	assert.EqualValues(t, 0, s.Performance)
	assert.Equal(t, "High", s.Priority)
	assert.Equal(t, 8, s.TopicVolume)
}

func TestLLMAdvisorSurfacesFailures(t *testing.T) {
	ctx := context.Background()

	a := &llmAdvisor{llm: scriptedCompleter{reply: "no json here"}}
	_, err := a.ValidateExam(ctx, "x", "", "")
	assert.ErrorIs(t, err, utils.ErrUnexpectedBehaviorOfAI)

	a = &llmAdvisor{llm: unconfiguredCompleter{name: "openai"}}
	_, err = a.AnalyzeSubject(ctx, "x", "y", "")
	assert.ErrorIs(t, err, utils.ErrUnexpectedBehaviorOfAI)
}
