package response_models

type ExamValidationResponse struct {
	IsValid               bool     `json:"is_valid"`
	SuggestedName         string   `json:"suggested_name,omitempty"`
	RealExamName          string   `json:"real_exam_name,omitempty"`
	GradeLevels           []string `json:"grade_levels,omitempty"`
	Streams               []string `json:"streams,omitempty"`
	IsPopular             bool     `json:"is_popular"`
	Reason                string   `json:"reason,omitempty"`
	ExamType              string   `json:"exam_type,omitempty"`
	Description           string   `json:"description,omitempty"`
	Country               string   `json:"country,omitempty"`
	ExamBoard             string   `json:"exam_board,omitempty"`
	ExamLevel             string   `json:"exam_level,omitempty"`
	NeedsClarification    bool     `json:"needs_clarification"`
	ClarificationQuestion string   `json:"clarification_question,omitempty"`
}

type SubjectAnalysisResponse struct {
	Subject     string  `json:"subject"`
	ExamName    string  `json:"exam_name"`
	Difficulty  float64 `json:"difficulty"`
	ExamWeight  float64 `json:"exam_weight"`
	TopicVolume int     `json:"topic_volume"`
	Performance float64 `json:"performance"`
	Priority    string  `json:"priority"`
	SuccessRate float64 `json:"success_rate"`
}

// GatedActionResponse wraps a language-model result with the tokens it consumed.
type GatedActionResponse[T any] struct {
	Result      T     `json:"result"`
	TokensSpent int64 `json:"tokens_spent"`
	Remaining   int64 `json:"remaining_tokens"`
}
