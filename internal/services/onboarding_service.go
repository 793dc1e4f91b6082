package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"exampattern/internal/models/request_models"
	"exampattern/internal/models/response_models"
	"exampattern/pkg/utils"
)

type OnboardingServiceInterface interface {
	ValidateExam(ctx context.Context, userID string, req request_models.ValidateExamRequest) (*response_models.GatedActionResponse[response_models.ExamValidationResponse], error)
	AnalyzeSubject(ctx context.Context, userID string, req request_models.SubjectAnalysisRequest) (*response_models.GatedActionResponse[response_models.SubjectAnalysisResponse], error)
}

type OnboardingService struct {
	ledger       LedgerServiceInterface
	advisor      ExamAdvisor
	requestLimit time.Duration
}

func NewOnboardingService(ledger LedgerServiceInterface, advisor ExamAdvisor, requestLimit time.Duration) OnboardingServiceInterface {
	return &OnboardingService{ledger: ledger, advisor: advisor, requestLimit: requestLimit}
}

func (o *OnboardingService) ValidateExam(ctx context.Context, userID string, req request_models.ValidateExamRequest) (*response_models.GatedActionResponse[response_models.ExamValidationResponse], error) {
	exam := strings.TrimSpace(req.ExamName)
	if exam == "" {
		return nil, fmt.Errorf("%w: exam name is required", utils.ErrInvalidInput)
	}
	return runGated(ctx, o, userID, ActionExamValidation,
		fmt.Sprintf("Exam validation: %s", exam),
		UsageContext{ExamType: exam},
		func(ctx context.Context) (*response_models.ExamValidationResponse, error) {
			return o.advisor.ValidateExam(ctx, exam, strings.TrimSpace(req.GradeLevel), strings.TrimSpace(req.Stream))
		})
}

func (o *OnboardingService) AnalyzeSubject(ctx context.Context, userID string, req request_models.SubjectAnalysisRequest) (*response_models.GatedActionResponse[response_models.SubjectAnalysisResponse], error) {
	subject := strings.TrimSpace(req.Subject)
	exam := strings.TrimSpace(req.ExamName)
	if subject == "" || exam == "" {
		return nil, fmt.Errorf("%w: subject and exam name are required", utils.ErrInvalidInput)
	}
	return runGated(ctx, o, userID, ActionSubjectAnalysis,
		fmt.Sprintf("Subject analysis: %s (%s)", subject, exam),
		UsageContext{ExamType: exam, Subject: subject},
		func(ctx context.Context) (*response_models.SubjectAnalysisResponse, error) {
			return o.advisor.AnalyzeSubject(ctx, subject, exam, strings.TrimSpace(req.GradeLevel))
		})
}

// runGated checks the balance, runs the model call and debits only after it
// succeeded. A failed call leaves the balance untouched.
func runGated[T any](
	ctx context.Context,
	o *OnboardingService,
	userID string,
	action ActionType,
	description string,
	usage UsageContext,
	call func(ctx context.Context) (*T, error),
) (*response_models.GatedActionResponse[T], error) {
	check, err := o.ledger.HasSufficient(ctx, userID, action)
	if err != nil {
		return nil, err
	}
	if !check.HasSufficient {
		return nil, &utils.InsufficientTokensError{
			Action:    string(action),
			Required:  check.Required,
			Available: check.Available,
		}
	}

	callCtx := ctx
	if o.requestLimit > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.requestLimit)
		defer cancel()
	}
	result, err := call(callCtx)
	if err != nil {
		log.WithFields(log.Fields{"user_id": userID, "action": action}).Warnf("language model call failed: %v", err)
		return nil, err
	}

	debit, err := o.ledger.Debit(ctx, userID, action, description, usage, "")
	if err != nil {
		return nil, err
	}
	return &response_models.GatedActionResponse[T]{
		Result:      *result,
		TokensSpent: debit.Deducted,
		Remaining:   debit.Remaining,
	}, nil
}
