package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"exampattern/internal/models/db_models"
)

type SubjectRepositoryInterface interface {
	Create(ctx context.Context, subject *db_models.UserSubject) error
	ListByAccount(ctx context.Context, accountID string) ([]db_models.UserSubject, error)
	FindForAccount(ctx context.Context, id, accountID string) (*db_models.UserSubject, error)
	Update(ctx context.Context, subject *db_models.UserSubject) error
	Delete(ctx context.Context, id, accountID string) (bool, error)
	ReplaceForAccount(ctx context.Context, accountID string, subjects []db_models.UserSubject) error
}

type SubjectRepository struct {
	db *gorm.DB
}

func NewSubjectRepository(db *gorm.DB) SubjectRepositoryInterface {
	return &SubjectRepository{db: db}
}

func (s *SubjectRepository) Create(ctx context.Context, subject *db_models.UserSubject) error {
	return s.db.WithContext(ctx).Create(subject).Error
}

func (s *SubjectRepository) ListByAccount(ctx context.Context, accountID string) ([]db_models.UserSubject, error) {
	var subjects []db_models.UserSubject
	err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Find(&subjects).Error
	if err != nil {
		return nil, err
	}
	return subjects, nil
}

func (s *SubjectRepository) FindForAccount(ctx context.Context, id, accountID string) (*db_models.UserSubject, error) {
	var subject db_models.UserSubject
	err := s.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", id, accountID).
		First(&subject).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &subject, nil
}

func (s *SubjectRepository) Update(ctx context.Context, subject *db_models.UserSubject) error {
	return s.db.WithContext(ctx).Save(subject).Error
}

// Delete reports whether a subject owned by the account was removed.
func (s *SubjectRepository) Delete(ctx context.Context, id, accountID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("id = ? AND account_id = ?", id, accountID).
		Delete(&db_models.UserSubject{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ReplaceForAccount swaps the account's subject list in one transaction,
// used when onboarding is (re)completed.
func (s *SubjectRepository) ReplaceForAccount(ctx context.Context, accountID string, subjects []db_models.UserSubject) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", accountID).Delete(&db_models.UserSubject{}).Error; err != nil {
			return err
		}
		if len(subjects) == 0 {
			return nil
		}
		return tx.Create(&subjects).Error
	})
}
