package api

import (
	"github.com/gin-gonic/gin"

	"exampattern/internal/api/controllers"
	"exampattern/internal/models/db_models"
	"exampattern/internal/models/response_models"
	"exampattern/internal/services"
	"exampattern/pkg/middleware"
	"exampattern/pkg/utils"
)

type RouterDeps struct {
	JWT         *utils.JWTManager
	Ledger      services.LedgerServiceInterface
	CORSOrigins []string

	Accounts   *controllers.AccountController
	Payments   *controllers.PaymentController
	Onboarding *controllers.OnboardingController
	Health     *controllers.HealthController
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.TraceIDMiddleware())
	r.Use(middleware.CORSMiddleware(deps.CORSOrigins))

	RegisterRoutes(r, deps)
	return r
}

func RegisterRoutes(r *gin.Engine, deps RouterDeps) {
	auth := middleware.JWTAuthMiddleware(deps.JWT)
	gate := ledgerGate(deps.Ledger)

	r.GET("/health", deps.Health.Health)

	authGroup := r.Group("/auth")
	authGroup.POST("/signup", deps.Accounts.SignUp)
	authGroup.POST("/login", deps.Accounts.Login)
	authGroup.GET("/verify-email", deps.Accounts.VerifyEmail)
	authGroup.POST("/resend-verification", deps.Accounts.ResendVerification)
	authGroup.POST("/forgot-password", deps.Accounts.ForgotPassword)
	authGroup.POST("/reset-password", deps.Accounts.ResetPassword)
	authGroup.GET("/google", deps.Accounts.OAuthRedirect(db_models.ProviderGoogle))
	authGroup.GET("/google/callback", deps.Accounts.OAuthCallback(db_models.ProviderGoogle))
	authGroup.GET("/facebook", deps.Accounts.OAuthRedirect(db_models.ProviderFacebook))
	authGroup.GET("/facebook/callback", deps.Accounts.OAuthCallback(db_models.ProviderFacebook))

	me := authGroup.Group("", auth)
	me.GET("/profile", deps.Accounts.GetProfile)
	me.PUT("/profile", deps.Accounts.UpdateProfile)
	me.POST("/onboarding/complete", deps.Accounts.CompleteOnboarding)
	me.GET("/subjects", deps.Accounts.ListSubjects)
	me.POST("/subjects", deps.Accounts.CreateSubject)
	me.PUT("/subjects/:subjectId", deps.Accounts.UpdateSubject)
	me.DELETE("/subjects/:subjectId", deps.Accounts.DeleteSubject)

	onboarding := r.Group("/onboarding", auth)
	onboarding.POST("/validate-exam", middleware.RequireTokens(gate, string(services.ActionExamValidation)), deps.Onboarding.ValidateExam)
	onboarding.POST("/subject-analysis", middleware.RequireTokens(gate, string(services.ActionSubjectAnalysis)), deps.Onboarding.SubjectAnalysis)

	payment := r.Group("/payment")
	payment.GET("/pricing", deps.Payments.Pricing)
	payment.GET("/test-cards", deps.Payments.TestCards)

	paid := payment.Group("", auth)
	paid.GET("/tokens", deps.Payments.Balance)
	paid.GET("/tokens/history", deps.Payments.UsageHistory)
	paid.GET("/tokens/statistics", deps.Payments.TokenStatistics)
	paid.POST("/check-tokens", deps.Payments.CheckTokens)
	paid.POST("/deduct-tokens", deps.Payments.DeductTokens)
	paid.POST("/purchase", deps.Payments.Purchase)
	paid.GET("/transactions", deps.Payments.Transactions)
	paid.GET("/statistics", deps.Payments.PaymentStatistics)

	admin := payment.Group("/admin", auth, middleware.RoleMiddleware(db_models.RoleAdmin))
	admin.POST("/add-tokens", deps.Payments.AdminAddTokens)
	admin.POST("/refund", deps.Payments.AdminRefund)
}

func ledgerGate(ledger services.LedgerServiceInterface) middleware.BalanceCheckFunc {
	return func(c *gin.Context, userID, action string) (*response_models.TokenCheckResponse, error) {
		return ledger.HasSufficient(c.Request.Context(), userID, services.ActionType(action))
	}
}
