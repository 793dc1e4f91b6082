package db_models

import "github.com/google/uuid"

type UserSubject struct {
	BaseModel
	AccountID   uuid.UUID `gorm:"type:uuid;index"`
	Name        string
	Description string
	ExamName    string
}
