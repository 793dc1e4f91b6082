package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"exampattern/internal/config"
	"exampattern/internal/models/response_models"
	"exampattern/pkg/utils"
)

// ExamAdvisor answers the onboarding questions that need a language model.
type ExamAdvisor interface {
	ValidateExam(ctx context.Context, examName, gradeLevel, stream string) (*response_models.ExamValidationResponse, error)
	AnalyzeSubject(ctx context.Context, subject, examName, gradeLevel string) (*response_models.SubjectAnalysisResponse, error)
}

// completer sends a single prompt and returns the raw model text.
type completer interface {
	Complete(ctx context.Context, prompt string, temperature float32) (string, error)
	Name() string
}

type llmAdvisor struct {
	llm completer
}

// NewExamAdvisor picks the provider named in cfg. Without an API key the
// returned advisor fails every call with ErrUnexpectedBehaviorOfAI.
func NewExamAdvisor(ctx context.Context, cfg config.LLMConfig) (ExamAdvisor, error) {
	switch cfg.Provider {
	case "", "openai":
		if cfg.OpenAIKey == "" {
			return &llmAdvisor{llm: unconfiguredCompleter{name: "openai"}}, nil
		}
		return &llmAdvisor{llm: newOpenAICompleter(cfg.OpenAIKey, cfg.OpenAIModel)}, nil
	case "gemini":
		if cfg.GeminiKey == "" {
			return &llmAdvisor{llm: unconfiguredCompleter{name: "gemini"}}, nil
		}
		c, err := newGeminiCompleter(ctx, cfg.GeminiKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return &llmAdvisor{llm: c}, nil
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.Provider)
	}
}

type examValidationPayload struct {
	IsValid               bool     `json:"isValid"`
	SuggestedName         string   `json:"suggestedName"`
	RealExamName          string   `json:"realExamName"`
	GradeLevels           []string `json:"gradeLevels"`
	Streams               []string `json:"streams"`
	IsPopular             bool     `json:"isPopular"`
	Reason                string   `json:"reason"`
	ExamType              string   `json:"examType"`
	Description           string   `json:"description"`
	Country               string   `json:"country"`
	ExamBoard             string   `json:"examBoard"`
	ExamLevel             string   `json:"examLevel"`
	NeedsClarification    bool     `json:"needsClarification"`
	ClarificationQuestion string   `json:"clarificationQuestion"`
}

type subjectAnalysisPayload struct {
	Difficulty  float64 `json:"difficulty"`
	ExamWeight  float64 `json:"examWeight"`
	TopicVolume int     `json:"topicVolume"`
	Performance float64 `json:"performance"`
	Priority    string  `json:"priority"`
	SuccessRate float64 `json:"successRate"`
}

func (a *llmAdvisor) ValidateExam(ctx context.Context, examName, gradeLevel, stream string) (*response_models.ExamValidationResponse, error) {
	raw, err := a.llm.Complete(ctx, examValidationPrompt(examName, gradeLevel, stream), 0.1)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", utils.ErrUnexpectedBehaviorOfAI, a.llm.Name(), err)
	}
	var p examValidationPayload
	if err := decodeModelJSON(raw, &p); err != nil {
		return nil, err
	}
	return &response_models.ExamValidationResponse{
		IsValid:               p.IsValid,
		SuggestedName:         p.SuggestedName,
		RealExamName:          p.RealExamName,
		GradeLevels:           p.GradeLevels,
		Streams:               p.Streams,
		IsPopular:             p.IsPopular,
		Reason:                p.Reason,
		ExamType:              p.ExamType,
		Description:           p.Description,
		Country:               p.Country,
		ExamBoard:             p.ExamBoard,
		ExamLevel:             p.ExamLevel,
		NeedsClarification:    p.NeedsClarification,
		ClarificationQuestion: p.ClarificationQuestion,
	}, nil
}

func (a *llmAdvisor) AnalyzeSubject(ctx context.Context, subject, examName, gradeLevel string) (*response_models.SubjectAnalysisResponse, error) {
	raw, err := a.llm.Complete(ctx, subjectAnalysisPrompt(subject, examName, gradeLevel), 0.3)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", utils.ErrUnexpectedBehaviorOfAI, a.llm.Name(), err)
	}
	var p subjectAnalysisPayload
	if err := decodeModelJSON(raw, &p); err != nil {
		return nil, err
	}
	return &response_models.SubjectAnalysisResponse{
		Subject:     subject,
		ExamName:    examName,
		Difficulty:  clampPercent(p.Difficulty),
		ExamWeight:  clampPercent(p.ExamWeight),
		TopicVolume: max(p.TopicVolume, 0),
		Performance: clampPercent(p.Performance),
		Priority:    normalizePriority(p.Priority),
		SuccessRate: clampPercent(p.SuccessRate),
	}, nil
}

func examValidationPrompt(examName, gradeLevel, stream string) string {
	var ctxLine strings.Builder
	if gradeLevel != "" {
		fmt.Fprintf(&ctxLine, "Grade level: %s\n", gradeLevel)
	}
	if stream != "" {
		fmt.Fprintf(&ctxLine, "Stream: %s\n", stream)
	}
	return fmt.Sprintf(`You are an expert on educational examinations worldwide.
Decide whether the following is a real examination a student can prepare for.

Exam name: %q
%s
Return JSON only, no markdown, with exactly these keys:
{
  "isValid": true,
  "suggestedName": "corrected or canonical short name",
  "realExamName": "full official name",
  "gradeLevels": ["grades or years the exam targets"],
  "streams": ["streams or tracks, empty if none"],
  "isPopular": false,
  "reason": "one sentence",
  "examType": "entrance | board | certification | competitive | other",
  "description": "one sentence",
  "country": "country or International",
  "examBoard": "conducting body",
  "examLevel": "school | undergraduate | postgraduate | professional",
  "needsClarification": false,
  "clarificationQuestion": ""
}`, examName, ctxLine.String())
}

func subjectAnalysisPrompt(subject, examName, gradeLevel string) string {
	grade := gradeLevel
	if grade == "" {
		grade = "unspecified"
	}
	return fmt.Sprintf(`You are an exam preparation analyst.
Assess the subject %q for the exam %q at grade level %s.

Return JSON only, no markdown, with exactly these keys:
{
  "difficulty": 0-100,
  "examWeight": 0-100,
  "topicVolume": number of major topics,
  "performance": expected average student score 0-100,
  "priority": "High" | "Medium" | "Low",
  "successRate": 0-100
}`, subject, examName, grade)
}

var (
	fencePattern        = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	lineCommentPattern  = regexp.MustCompile(`(?m)^\s*//.*$`)
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// extractJSON pulls the first JSON object out of a model reply that may carry
// markdown fences, comments or surrounding prose.
func extractJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	s = blockCommentPattern.ReplaceAllString(s, "")
	s = lineCommentPattern.ReplaceAllString(s, "")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	s = s[start : end+1]
	if !json.Valid([]byte(s)) {
		return "", false
	}
	return s, true
}

func decodeModelJSON(raw string, out any) error {
	body, ok := extractJSON(raw)
	if !ok {
		return fmt.Errorf("%w: reply is not a JSON object", utils.ErrUnexpectedBehaviorOfAI)
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return fmt.Errorf("%w: %v", utils.ErrUnexpectedBehaviorOfAI, err)
	}
	return nil
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

func normalizePriority(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "high":
		return "High"
	case "low":
		return "Low"
	default:
		return "Medium"
	}
}

type unconfiguredCompleter struct {
	name string
}

func (u unconfiguredCompleter) Complete(context.Context, string, float32) (string, error) {
	return "", fmt.Errorf("no API key configured")
}

func (u unconfiguredCompleter) Name() string { return u.name }
