package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"exampattern/internal/api/controllers"
	"exampattern/internal/config"
	"exampattern/internal/infra"
	"exampattern/internal/models/db_models"
	"exampattern/internal/models/response_models"
	"exampattern/internal/repositories"
	"exampattern/internal/services"
	mem "exampattern/pkg/memcache"
	"exampattern/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubAdvisor struct {
	calls int
}

func (s *stubAdvisor) ValidateExam(_ context.Context, examName, _, _ string) (*response_models.ExamValidationResponse, error) {
	s.calls++
	return &response_models.ExamValidationResponse{IsValid: true, SuggestedName: examName}, nil
}

func (s *stubAdvisor) AnalyzeSubject(_ context.Context, subject, examName, _ string) (*response_models.SubjectAnalysisResponse, error) {
	s.calls++
	return &response_models.SubjectAnalysisResponse{Subject: subject, ExamName: examName, Priority: "Medium"}, nil
}

type testServer struct {
	t       *testing.T
	router  *gin.Engine
	db      *gorm.DB
	advisor *stubAdvisor
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := infra.OpenDatabase("file::memory:")
	require.NoError(t, err)
	require.NoError(t, infra.Migrate(db))
	t.Cleanup(func() { infra.CloseDatabase(db) })

	jwt := utils.NewJWTManager("router-secret", time.Hour)
	ledger := services.NewLedgerService(repositories.NewLedgerRepository(db), services.DefaultCostTable(), 50)
	settlement := services.NewSettlementService(ledger, repositories.NewTransactionRepository(db),
		services.SettlementOptions{SuccessRate: 1})
	mail := services.NewMailService(config.SMTPConfig{}, "http://localhost:8080")
	accounts := services.NewAccountService(
		repositories.NewAccountRepository(db),
		repositories.NewSubjectRepository(db),
		mem.NewResetTokens(),
		mail,
		jwt,
		ledger,
		nil,
	)
	advisor := &stubAdvisor{}
	onboarding := services.NewOnboardingService(ledger, advisor, time.Second)

	router := NewRouter(RouterDeps{
		JWT:        jwt,
		Ledger:     ledger,
		Accounts:   controllers.NewAccountController(accounts),
		Payments:   controllers.NewPaymentController(ledger, settlement, accounts, mail),
		Onboarding: controllers.NewOnboardingController(onboarding),
		Health: controllers.NewHealthController([]controllers.HealthProbe{
			{Name: "database", Check: func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			}},
		}),
	})
	return &testServer{t: t, router: router, db: db, advisor: advisor}
}

type envelope struct {
	Status  string          `json:"status"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(method, path, token string, body any) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (s *testServer) signUp(email string) string {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/auth/signup", "", gin.H{
		"display_name": "Router Test",
		"email":        email,
		"password":     "secret123",
	})
	require.Equal(s.t, http.StatusOK, code, env.Message)
	var res response_models.AccountLoginResponse
	require.NoError(s.t, json.Unmarshal(env.Data, &res))
	return res.Token
}

func (s *testServer) login(email string) string {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/auth/login", "", gin.H{"email": email, "password": "secret123"})
	require.Equal(s.t, http.StatusOK, code, env.Message)
	var res response_models.AccountLoginResponse
	require.NoError(s.t, json.Unmarshal(env.Data, &res))
	return res.Token
}

func (s *testServer) balance(token string) response_models.TokenBalanceResponse {
	s.t.Helper()
	code, env := s.do(http.MethodGet, "/payment/tokens", token, nil)
	require.Equal(s.t, http.StatusOK, code)
	var b response_models.TokenBalanceResponse
	require.NoError(s.t, json.Unmarshal(env.Data, &b))
	return b
}

func testCard() gin.H {
	return gin.H{
		"number":       "4242 4242 4242 4242",
		"expiry_month": 12,
		"expiry_year":  time.Now().Year() + 1,
		"cvc":          "123",
	}
}

func TestPublicRoutes(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"database":"ok"`)

	code, env = s.do(http.MethodGet, "/payment/pricing", "", nil)
	assert.Equal(t, http.StatusOK, code)
	var pricing response_models.PricingResponse
	require.NoError(t, json.Unmarshal(env.Data, &pricing))
	assert.EqualValues(t, 10, pricing.ActionCosts["examValidation"])
	assert.Len(t, pricing.Tiers, 5)

	code, _ = s.do(http.MethodGet, "/payment/test-cards", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/payment/tokens", "/payment/transactions", "/auth/profile"} {
		code, _ := s.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, code, path)
	}
}

func TestGatedOnboardingFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("flow@example.com")

	assert.EqualValues(t, 50, s.balance(token).Available)

	code, env := s.do(http.MethodPost, "/onboarding/validate-exam", token, gin.H{"exam_name": "JEE Main"})
	require.Equal(t, http.StatusOK, code, env.Message)
	var validated response_models.GatedActionResponse[response_models.ExamValidationResponse]
	require.NoError(t, json.Unmarshal(env.Data, &validated))
	assert.True(t, validated.Result.IsValid)
	assert.EqualValues(t, 10, validated.TokensSpent)
	assert.EqualValues(t, 40, validated.Remaining)

	for i := 0; i < 2; i++ {
		code, _ = s.do(http.MethodPost, "/onboarding/subject-analysis", token, gin.H{"subject": "Physics", "exam_name": "JEE Main"})
		require.Equal(t, http.StatusOK, code)
	}
	assert.EqualValues(t, 10, s.balance(token).Available)

	calls := s.advisor.calls
	code, env = s.do(http.MethodPost, "/onboarding/subject-analysis", token, gin.H{"subject": "Maths", "exam_name": "JEE Main"})
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Contains(t, string(env.Data), `"required":15`)
	assert.Equal(t, calls, s.advisor.calls)

	code, env = s.do(http.MethodGet, "/payment/tokens/history?limit=2", token, nil)
	require.Equal(t, http.StatusOK, code)
	var history []response_models.UsageLogResponse
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history, 2)
	assert.Equal(t, "subjectAnalysis", history[0].ActionType)
	assert.Equal(t, "Physics", history[0].Subject)
}

func TestDeductTokensEndpoint(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("deduct@example.com")

	body := gin.H{"action_type": "visualData", "idempotency_key": "req-1", "topic": "Optics"}
	code, env := s.do(http.MethodPost, "/payment/deduct-tokens", token, body)
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = s.do(http.MethodPost, "/payment/deduct-tokens", token, body)
	require.Equal(t, http.StatusOK, code)
	var replay response_models.DebitResponse
	require.NoError(t, json.Unmarshal(env.Data, &replay))
	assert.True(t, replay.Replayed)
	assert.EqualValues(t, 25, s.balance(token).Available)

	code, _ = s.do(http.MethodPost, "/payment/deduct-tokens", token, gin.H{"action_type": "teleport"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(http.MethodPost, "/payment/check-tokens", token, gin.H{"action_type": "visualData"})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"has_sufficient":true`)
}

func TestPurchaseAndAdminRefund(t *testing.T) {
	s := newTestServer(t)
	userToken := s.signUp("buyer@example.com")
	s.signUp("admin@example.com")
	require.NoError(t, s.db.Model(&db_models.Account{}).
		Where("email = ?", "admin@example.com").
		Update("role", db_models.RoleAdmin).Error)
	adminToken := s.login("admin@example.com")

	code, env := s.do(http.MethodPost, "/payment/purchase", userToken, gin.H{"tokens": 100, "card": testCard()})
	require.Equal(t, http.StatusOK, code, env.Message)
	var txn response_models.TransactionResponse
	require.NoError(t, json.Unmarshal(env.Data, &txn))
	assert.Equal(t, "completed", txn.Status)
	assert.Equal(t, "9.99", txn.Amount)
	assert.Equal(t, "4242", txn.CardLast4)
	assert.EqualValues(t, 150, s.balance(userToken).Available)

	code, env = s.do(http.MethodPost, "/payment/purchase", userToken, gin.H{"tokens": 100, "card": gin.H{
		"number": "4242424242424241", "expiry_month": 12, "expiry_year": time.Now().Year() + 1, "cvc": "123",
	}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid card number", env.Message)

	var profile response_models.AccountResponse
	_, env = s.do(http.MethodGet, "/auth/profile", userToken, nil)
	require.NoError(t, json.Unmarshal(env.Data, &profile))

	refund := gin.H{"user_id": profile.ID, "transaction_id": txn.ID}
	code, _ = s.do(http.MethodPost, "/payment/admin/refund", userToken, refund)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(http.MethodPost, "/payment/admin/refund", adminToken, refund)
	require.Equal(t, http.StatusOK, code, env.Message)
	var refunded response_models.TransactionResponse
	require.NoError(t, json.Unmarshal(env.Data, &refunded))
	assert.Equal(t, "refunded", refunded.Status)
	assert.EqualValues(t, 100, refunded.TokensReversed)
	assert.EqualValues(t, 50, s.balance(userToken).Available)

	code, _ = s.do(http.MethodPost, "/payment/admin/refund", adminToken, refund)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(http.MethodPost, "/payment/admin/add-tokens", adminToken, gin.H{"user_id": profile.ID, "amount": 30, "reason": "support"})
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 80, s.balance(userToken).Available)

	code, env = s.do(http.MethodGet, "/payment/statistics", userToken, nil)
	require.Equal(t, http.StatusOK, code)
	var stats response_models.PaymentStatisticsResponse
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.TotalTransactions)
	assert.Equal(t, 1, stats.CountByStatus["refunded"])
}

func TestClientKeyCannotShadowRefund(t *testing.T) {
	s := newTestServer(t)
	userToken := s.signUp("shadow@example.com")
	s.signUp("root@example.com")
	require.NoError(t, s.db.Model(&db_models.Account{}).
		Where("email = ?", "root@example.com").
		Update("role", db_models.RoleAdmin).Error)
	adminToken := s.login("root@example.com")

	code, env := s.do(http.MethodPost, "/payment/purchase", userToken, gin.H{"tokens": 100, "card": testCard()})
	require.Equal(t, http.StatusOK, code, env.Message)
	var txn response_models.TransactionResponse
	require.NoError(t, json.Unmarshal(env.Data, &txn))

	code, env = s.do(http.MethodPost, "/payment/deduct-tokens", userToken,
		gin.H{"action_type": "visualData", "idempotency_key": "refund:" + txn.ID})
	require.Equal(t, http.StatusOK, code, env.Message)
	assert.EqualValues(t, 125, s.balance(userToken).Available)

	var profile response_models.AccountResponse
	_, env = s.do(http.MethodGet, "/auth/profile", userToken, nil)
	require.NoError(t, json.Unmarshal(env.Data, &profile))

	code, env = s.do(http.MethodPost, "/payment/admin/refund", adminToken, gin.H{"user_id": profile.ID, "transaction_id": txn.ID})
	require.Equal(t, http.StatusOK, code, env.Message)
	var refunded response_models.TransactionResponse
	require.NoError(t, json.Unmarshal(env.Data, &refunded))
	assert.EqualValues(t, 100, refunded.TokensReversed)
	assert.EqualValues(t, 25, s.balance(userToken).Available)
}

func TestHistoryRejectsBadLimit(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("limits@example.com")

	for _, path := range []string{"/payment/tokens/history?limit=abc", "/payment/transactions?limit=-1"} {
		code, _ := s.do(http.MethodGet, path, token, nil)
		assert.Equal(t, http.StatusBadRequest, code, path)
	}
}

func TestSubjectRoutes(t *testing.T) {
	s := newTestServer(t)
	token := s.signUp("subjects@example.com")

	code, env := s.do(http.MethodPost, "/auth/subjects", token, gin.H{"name": "Chemistry"})
	require.Equal(t, http.StatusOK, code, env.Message)
	var subject response_models.SubjectResponse
	require.NoError(t, json.Unmarshal(env.Data, &subject))

	code, _ = s.do(http.MethodPut, "/auth/subjects/"+subject.ID, token, gin.H{"name": "Organic Chemistry"})
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodDelete, "/auth/subjects/"+subject.ID, token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodDelete, "/auth/subjects/"+subject.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodGet, "/auth/google", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}
