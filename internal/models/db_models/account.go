package db_models

import "gorm.io/datatypes"

type AuthProvider string

const (
	ProviderLocal    AuthProvider = "local"
	ProviderGoogle   AuthProvider = "google"
	ProviderFacebook AuthProvider = "facebook"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Account struct {
	BaseModel
	Name         string
	Email        string `gorm:"uniqueIndex"`
	PasswordHash string
	Role         string       `gorm:"default:user"`
	Provider     AuthProvider `gorm:"default:local"`
	ProviderID   string       `gorm:"index"`
	Verified     bool         `gorm:"default:false"`

	OnboardingCompleted bool `gorm:"default:false"`
	// ExamProfile holds the onboarding answers (exam, grade level, stream, subjects).
	ExamProfile datatypes.JSON

	Subjects []UserSubject `gorm:"foreignKey:AccountID"`
}
