package request_models

type ValidateExamRequest struct {
	ExamName   string `json:"exam_name" binding:"required,max=200"`
	GradeLevel string `json:"grade_level"`
	Stream     string `json:"stream"`
}

type SubjectAnalysisRequest struct {
	Subject    string `json:"subject" binding:"required,max=200"`
	ExamName   string `json:"exam_name" binding:"required,max=200"`
	GradeLevel string `json:"grade_level"`
}
