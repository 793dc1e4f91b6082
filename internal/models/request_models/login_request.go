package request_models

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type SignUpRequest struct {
	DisplayName string `json:"display_name" binding:"required,min=3,max=50"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
}

type ForgotPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
	Token       string `json:"token" binding:"required"`
}

type RequestForgotPassword struct {
	Email string `json:"email" binding:"required,email"`
}

type ResendVerificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type UpdateProfileRequest struct {
	DisplayName string `json:"display_name" binding:"required,min=3,max=50"`
}

type CompleteOnboardingRequest struct {
	ExamName   string   `json:"exam_name" binding:"required"`
	GradeLevel string   `json:"grade_level" binding:"required"`
	Stream     string   `json:"stream"`
	Subjects   []string `json:"subjects" binding:"required,min=1,dive,required"`
}

type SubjectRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description" binding:"max=500"`
	ExamName    string `json:"exam_name"`
}
