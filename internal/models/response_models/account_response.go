package response_models

import "gorm.io/datatypes"

type AccountLoginResponse struct {
	Token               string `json:"token"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
}

type AccountResponse struct {
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Email               string            `json:"email"`
	Role                string            `json:"role"`
	Provider            string            `json:"provider"`
	Verified            bool              `json:"verified"`
	OnboardingCompleted bool              `json:"onboarding_completed"`
	ExamProfile         datatypes.JSON    `json:"exam_profile,omitempty"`
	Subjects            []SubjectResponse `json:"subjects,omitempty"`
}

type SubjectResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ExamName    string `json:"exam_name,omitempty"`
}

type OAuthRedirectResponse struct {
	AuthURL string `json:"auth_url"`
}
