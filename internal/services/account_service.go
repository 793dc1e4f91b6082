package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"gorm.io/datatypes"

	"exampattern/internal/models/db_models"
	"exampattern/internal/models/request_models"
	"exampattern/internal/models/response_models"
	"exampattern/internal/repositories"
	mem "exampattern/pkg/memcache"
	"exampattern/pkg/utils"
)

const (
	verifyTokenTTL = 24 * time.Hour
	resetTokenTTL  = time.Hour
	oauthStateTTL  = 10 * time.Minute

	verifyPrefix = "verify:"
	resetPrefix  = "reset:"
	statePrefix  = "oauth-state:"
)

type AccountServiceInterface interface {
	CreateAccount(ctx context.Context, request request_models.SignUpRequest) (*response_models.AccountLoginResponse, error)
	Login(ctx context.Context, request request_models.LoginRequest) (*response_models.AccountLoginResponse, error)
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, request request_models.ForgotPasswordRequest) error

	GetProfile(ctx context.Context, accountID string) (*response_models.AccountResponse, error)
	UpdateProfile(ctx context.Context, accountID string, request request_models.UpdateProfileRequest) (*response_models.AccountResponse, error)
	CompleteOnboarding(ctx context.Context, accountID string, request request_models.CompleteOnboardingRequest) (*response_models.AccountResponse, error)

	ListSubjects(ctx context.Context, accountID string) ([]response_models.SubjectResponse, error)
	CreateSubject(ctx context.Context, accountID string, request request_models.SubjectRequest) (*response_models.SubjectResponse, error)
	UpdateSubject(ctx context.Context, accountID, subjectID string, request request_models.SubjectRequest) (*response_models.SubjectResponse, error)
	DeleteSubject(ctx context.Context, accountID, subjectID string) error

	OAuthURL(ctx context.Context, provider db_models.AuthProvider) (string, error)
	OAuthCallback(ctx context.Context, provider db_models.AuthProvider, state, code string) (*response_models.AccountLoginResponse, error)
}

type AccountService struct {
	accountRepo repositories.AccountRepository
	subjectRepo repositories.SubjectRepositoryInterface
	tokens      mem.TokenStore
	mail        IMailService
	jwt         *utils.JWTManager
	ledger      LedgerServiceInterface
	oauth       map[db_models.AuthProvider]*OAuthProvider
}

func NewAccountService(
	accountRepo repositories.AccountRepository,
	subjectRepo repositories.SubjectRepositoryInterface,
	tokens mem.TokenStore,
	mail IMailService,
	jwt *utils.JWTManager,
	ledger LedgerServiceInterface,
	oauth map[db_models.AuthProvider]*OAuthProvider,
) AccountServiceInterface {
	return &AccountService{
		accountRepo: accountRepo,
		subjectRepo: subjectRepo,
		tokens:      tokens,
		mail:        mail,
		jwt:         jwt,
		ledger:      ledger,
		oauth:       oauth,
	}
}

func (a *AccountService) CreateAccount(ctx context.Context, request request_models.SignUpRequest) (*response_models.AccountLoginResponse, error) {
	email := normalizeEmail(request.Email)

	existingAccount, err := a.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if existingAccount != nil {
		return nil, utils.ErrEmailAlreadyExists
	}

	hashedPassword, err := utils.HashPassword(request.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	newAccount := &db_models.Account{
		Name:         strings.TrimSpace(request.DisplayName),
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         db_models.RoleUser,
		Provider:     db_models.ProviderLocal,
	}
	if err := a.accountRepo.InsertTx(newAccount, ctx); err != nil {
		return nil, utils.ErrDatabaseError
	}

	a.seedBalance(ctx, newAccount.ID.String())
	if err := a.sendVerification(ctx, newAccount); err != nil {
		log.WithError(err).WithField("account_id", newAccount.ID).Warn("verification email not sent")
	}

	return a.issueToken(newAccount)
}

func (a *AccountService) Login(ctx context.Context, request request_models.LoginRequest) (*response_models.AccountLoginResponse, error) {
	startTime := time.Now()

	account, err := a.accountRepo.FindByEmail(ctx, normalizeEmail(request.Email))
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if account == nil || account.PasswordHash == "" {
		return nil, utils.ErrInvalidCredentials
	}

	if err := utils.ComparePasswords(account.PasswordHash, request.Password); err != nil {
		return nil, utils.ErrInvalidCredentials
	}

	log.WithField("account_id", account.ID).Debugf("login verified in %s", time.Since(startTime))
	return a.issueToken(account)
}

func (a *AccountService) VerifyEmail(ctx context.Context, token string) error {
	accountID, err := a.tokens.Consume(ctx, verifyPrefix+token)
	if err != nil {
		return utils.StorageErr("consume verification token", err)
	}
	if accountID == "" {
		return utils.ErrInvalidToken
	}
	if err := a.accountRepo.MarkVerified(ctx, accountID); err != nil {
		return utils.ErrDatabaseError
	}
	return nil
}

func (a *AccountService) ResendVerification(ctx context.Context, email string) error {
	account, err := a.accountRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return utils.ErrDatabaseError
	}
	if account == nil {
		return utils.ErrAccountNotFound
	}
	if account.Verified {
		return fmt.Errorf("%w: email already verified", utils.ErrInvalidInput)
	}
	return a.sendVerification(ctx, account)
}

// ForgotPassword never reveals whether the email is registered.
func (a *AccountService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	account, err := a.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		return utils.ErrDatabaseError
	}
	if account == nil {
		return nil
	}

	token, err := utils.GenerateSecureToken(32)
	if err != nil {
		return err
	}
	if err := a.tokens.Set(ctx, resetPrefix+token, email, resetTokenTTL); err != nil {
		return utils.StorageErr("store reset token", err)
	}
	if err := a.mail.SendMailToResetPassword(email, token); err != nil {
		log.WithError(err).WithField("account_id", account.ID).Error("reset email not sent")
	}
	return nil
}

func (a *AccountService) ResetPassword(ctx context.Context, request request_models.ForgotPasswordRequest) error {
	email := normalizeEmail(request.Email)
	owner, err := a.tokens.Consume(ctx, resetPrefix+request.Token)
	if err != nil {
		return utils.StorageErr("consume reset token", err)
	}
	if owner == "" || owner != email {
		return utils.ErrInvalidToken
	}

	account, err := a.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		return utils.ErrDatabaseError
	}
	if account == nil {
		return utils.ErrAccountNotFound
	}

	hashed, err := utils.HashPassword(request.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := a.accountRepo.UpdatePassword(ctx, account.ID.String(), hashed); err != nil {
		return utils.ErrDatabaseError
	}
	return nil
}

func (a *AccountService) GetProfile(ctx context.Context, accountID string) (*response_models.AccountResponse, error) {
	account, err := a.mustFind(ctx, accountID)
	if err != nil {
		return nil, err
	}
	subjects, err := a.subjectRepo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	return toAccountResponse(account, subjects), nil
}

func (a *AccountService) UpdateProfile(ctx context.Context, accountID string, request request_models.UpdateProfileRequest) (*response_models.AccountResponse, error) {
	account, err := a.mustFind(ctx, accountID)
	if err != nil {
		return nil, err
	}
	account.Name = strings.TrimSpace(request.DisplayName)
	if err := a.accountRepo.Update(ctx, account); err != nil {
		return nil, utils.ErrDatabaseError
	}
	return a.GetProfile(ctx, accountID)
}

type examProfile struct {
	ExamName   string   `json:"exam_name"`
	GradeLevel string   `json:"grade_level"`
	Stream     string   `json:"stream,omitempty"`
	Subjects   []string `json:"subjects"`
}

func (a *AccountService) CompleteOnboarding(ctx context.Context, accountID string, request request_models.CompleteOnboardingRequest) (*response_models.AccountResponse, error) {
	account, err := a.mustFind(ctx, accountID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(request.Subjects))
	for _, name := range request.Subjects {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	examName := strings.TrimSpace(request.ExamName)

	raw, err := json.Marshal(examProfile{
		ExamName:   examName,
		GradeLevel: strings.TrimSpace(request.GradeLevel),
		Stream:     strings.TrimSpace(request.Stream),
		Subjects:   names,
	})
	if err != nil {
		return nil, err
	}
	account.ExamProfile = datatypes.JSON(raw)
	account.OnboardingCompleted = true
	if err := a.accountRepo.Update(ctx, account); err != nil {
		return nil, utils.ErrDatabaseError
	}

	subjects := make([]db_models.UserSubject, 0, len(names))
	for _, name := range names {
		subjects = append(subjects, db_models.UserSubject{
			AccountID: account.ID,
			Name:      name,
			ExamName:  examName,
		})
	}
	if err := a.subjectRepo.ReplaceForAccount(ctx, accountID, subjects); err != nil {
		return nil, utils.ErrDatabaseError
	}
	return a.GetProfile(ctx, accountID)
}

func (a *AccountService) ListSubjects(ctx context.Context, accountID string) ([]response_models.SubjectResponse, error) {
	subjects, err := a.subjectRepo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	out := make([]response_models.SubjectResponse, 0, len(subjects))
	for _, s := range subjects {
		out = append(out, toSubjectResponse(&s))
	}
	return out, nil
}

func (a *AccountService) CreateSubject(ctx context.Context, accountID string, request request_models.SubjectRequest) (*response_models.SubjectResponse, error) {
	account, err := a.mustFind(ctx, accountID)
	if err != nil {
		return nil, err
	}
	subject := &db_models.UserSubject{
		AccountID:   account.ID,
		Name:        strings.TrimSpace(request.Name),
		Description: request.Description,
		ExamName:    request.ExamName,
	}
	if err := a.subjectRepo.Create(ctx, subject); err != nil {
		return nil, utils.ErrDatabaseError
	}
	resp := toSubjectResponse(subject)
	return &resp, nil
}

func (a *AccountService) UpdateSubject(ctx context.Context, accountID, subjectID string, request request_models.SubjectRequest) (*response_models.SubjectResponse, error) {
	subject, err := a.subjectRepo.FindForAccount(ctx, subjectID, accountID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if subject == nil {
		return nil, utils.ErrSubjectNotFound
	}
	subject.Name = strings.TrimSpace(request.Name)
	subject.Description = request.Description
	subject.ExamName = request.ExamName
	if err := a.subjectRepo.Update(ctx, subject); err != nil {
		return nil, utils.ErrDatabaseError
	}
	resp := toSubjectResponse(subject)
	return &resp, nil
}

func (a *AccountService) DeleteSubject(ctx context.Context, accountID, subjectID string) error {
	deleted, err := a.subjectRepo.Delete(ctx, subjectID, accountID)
	if err != nil {
		return utils.ErrDatabaseError
	}
	if !deleted {
		return utils.ErrSubjectNotFound
	}
	return nil
}

func (a *AccountService) OAuthURL(ctx context.Context, provider db_models.AuthProvider) (string, error) {
	p, ok := a.oauth[provider]
	if !ok {
		return "", utils.ErrOAuthNotConfigured
	}
	state, err := utils.GenerateSecureToken(16)
	if err != nil {
		return "", err
	}
	if err := a.tokens.Set(ctx, statePrefix+state, string(provider), oauthStateTTL); err != nil {
		return "", utils.StorageErr("store oauth state", err)
	}
	return p.Config.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

func (a *AccountService) OAuthCallback(ctx context.Context, provider db_models.AuthProvider, state, code string) (*response_models.AccountLoginResponse, error) {
	p, ok := a.oauth[provider]
	if !ok {
		return nil, utils.ErrOAuthNotConfigured
	}
	owner, err := a.tokens.Consume(ctx, statePrefix+state)
	if err != nil {
		return nil, utils.StorageErr("consume oauth state", err)
	}
	if owner != string(provider) || code == "" {
		return nil, utils.ErrInvalidToken
	}

	profile, err := p.fetchProfile(ctx, code)
	if err != nil {
		log.WithError(err).WithField("provider", provider).Warn("oauth callback failed")
		return nil, utils.ErrInvalidCredentials
	}

	account, err := a.accountRepo.FindByProvider(ctx, provider, profile.ID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if account == nil && profile.Email != "" {
		// Link to an existing local account with the same email.
		account, err = a.accountRepo.FindByEmail(ctx, normalizeEmail(profile.Email))
		if err != nil {
			return nil, utils.ErrDatabaseError
		}
		if account != nil && account.ProviderID == "" {
			account.Provider = provider
			account.ProviderID = profile.ID
			account.Verified = true
			if err := a.accountRepo.Update(ctx, account); err != nil {
				return nil, utils.ErrDatabaseError
			}
		}
	}
	if account == nil {
		email := normalizeEmail(profile.Email)
		if email == "" {
			email = fmt.Sprintf("%s-%s@users.noreply", provider, profile.ID)
		}
		account = &db_models.Account{
			Name:       profile.Name,
			Email:      email,
			Role:       db_models.RoleUser,
			Provider:   provider,
			ProviderID: profile.ID,
			Verified:   true,
		}
		if err := a.accountRepo.InsertTx(account, ctx); err != nil {
			return nil, utils.ErrDatabaseError
		}
		a.seedBalance(ctx, account.ID.String())
	}

	return a.issueToken(account)
}

func (a *AccountService) mustFind(ctx context.Context, accountID string) (*db_models.Account, error) {
	if _, err := uuid.Parse(accountID); err != nil {
		return nil, utils.ErrAccountNotFound
	}
	account, err := a.accountRepo.FindById(ctx, accountID)
	if err != nil {
		return nil, utils.ErrDatabaseError
	}
	if account == nil {
		return nil, utils.ErrAccountNotFound
	}
	return account, nil
}

func (a *AccountService) issueToken(account *db_models.Account) (*response_models.AccountLoginResponse, error) {
	token, err := a.jwt.CreateToken(account.ID, account.Role)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &response_models.AccountLoginResponse{
		Token:               token,
		OnboardingCompleted: account.OnboardingCompleted,
	}, nil
}

func (a *AccountService) sendVerification(ctx context.Context, account *db_models.Account) error {
	token, err := utils.GenerateSecureToken(32)
	if err != nil {
		return err
	}
	if err := a.tokens.Set(ctx, verifyPrefix+token, account.ID.String(), verifyTokenTTL); err != nil {
		return utils.StorageErr("store verification token", err)
	}
	return a.mail.SendVerificationEmail(account.Email, account.Name, token)
}

// seedBalance creates the ledger row with the starting grant right away so
// new users see their tokens before their first paid action.
func (a *AccountService) seedBalance(ctx context.Context, accountID string) {
	if a.ledger == nil {
		return
	}
	if _, err := a.ledger.GetBalance(ctx, accountID); err != nil {
		log.WithError(err).WithField("account_id", accountID).Warn("starting balance not created")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toAccountResponse(account *db_models.Account, subjects []db_models.UserSubject) *response_models.AccountResponse {
	resp := &response_models.AccountResponse{
		ID:                  account.ID.String(),
		Name:                account.Name,
		Email:               account.Email,
		Role:                account.Role,
		Provider:            string(account.Provider),
		Verified:            account.Verified,
		OnboardingCompleted: account.OnboardingCompleted,
		ExamProfile:         account.ExamProfile,
	}
	for i := range subjects {
		resp.Subjects = append(resp.Subjects, toSubjectResponse(&subjects[i]))
	}
	return resp
}

func toSubjectResponse(s *db_models.UserSubject) response_models.SubjectResponse {
	return response_models.SubjectResponse{
		ID:          s.ID.String(),
		Name:        s.Name,
		Description: s.Description,
		ExamName:    s.ExamName,
	}
}
