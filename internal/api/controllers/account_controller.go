package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"exampattern/internal/models/db_models"
	"exampattern/internal/models/request_models"
	"exampattern/internal/services"
	"exampattern/pkg/utils"
)

type AccountController struct {
	accountService services.AccountServiceInterface
}

func NewAccountController(accountService services.AccountServiceInterface) *AccountController {
	return &AccountController{
		accountService: accountService,
	}
}

// SignUp godoc
// @Summary Register a new account
// @Description Create a local account, seed its token balance and mail a verification link
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body request_models.SignUpRequest true "Account registration payload"
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Router /auth/signup [post]
func (a *AccountController) SignUp(c *gin.Context) {
	var req request_models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	res, err := a.accountService.CreateAccount(c.Request.Context(), req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, res, "Account created successfully")
}

// Login godoc
// @Summary Login to an account
// @Description Authenticate a user and return a token
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body request_models.LoginRequest true "Login payload"
// @Success 200 {object} utils.APIResponse
// @Failure 401 {object} utils.APIResponse
// @Router /auth/login [post]
func (a *AccountController) Login(c *gin.Context) {
	var req request_models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	res, err := a.accountService.Login(c.Request.Context(), req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, res, "Login successful")
}

// VerifyEmail godoc
// @Summary Verify an email address
// @Tags Auth
// @Produce json
// @Param token query string true "Verification token"
// @Success 200 {object} utils.APIResponse
// @Failure 401 {object} utils.APIResponse
// @Router /auth/verify-email [get]
func (a *AccountController) VerifyEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		utils.RespondError(c, http.StatusBadRequest, "token is required")
		return
	}

	if err := a.accountService.VerifyEmail(c.Request.Context(), token); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, nil, "Email verified successfully")
}

// ResendVerification godoc
// @Summary Resend the verification email
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body request_models.ResendVerificationRequest true "Email"
// @Success 200 {object} utils.APIResponse
// @Router /auth/resend-verification [post]
func (a *AccountController) ResendVerification(c *gin.Context) {
	var req request_models.ResendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := a.accountService.ResendVerification(c.Request.Context(), req.Email); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, nil, "Verification email sent")
}

// ForgotPassword handles the forgot password functionality.
// @Summary Request a password reset
// @Description Sends a password reset link to the provided email if it exists
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body request_models.RequestForgotPassword true "Forgot password payload"
// @Success 200 {object} utils.APIResponse
// @Router /auth/forgot-password [post]
func (a *AccountController) ForgotPassword(c *gin.Context) {
	var req request_models.RequestForgotPassword
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := a.accountService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, nil, "If the email exists, a reset link has been sent")
}

// ResetPassword godoc
// @Summary Reset password with a mailed token
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body request_models.ForgotPasswordRequest true "Password reset payload"
// @Success 200 {object} utils.APIResponse
// @Failure 401 {object} utils.APIResponse
// @Router /auth/reset-password [post]
func (a *AccountController) ResetPassword(c *gin.Context) {
	var req request_models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := a.accountService.ResetPassword(c.Request.Context(), req); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, nil, "Password has been reset successfully")
}

// GetProfile godoc
// @Summary Current account profile
// @Tags Auth
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /auth/profile [get]
func (a *AccountController) GetProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	profile, err := a.accountService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, profile, "Profile fetched successfully")
}

// UpdateProfile godoc
// @Summary Update the display name
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body request_models.UpdateProfileRequest true "Profile payload"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /auth/profile [put]
func (a *AccountController) UpdateProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req request_models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	profile, err := a.accountService.UpdateProfile(c.Request.Context(), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, profile, "Profile updated successfully")
}

// CompleteOnboarding godoc
// @Summary Store the onboarding answers
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body request_models.CompleteOnboardingRequest true "Exam profile"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /auth/onboarding/complete [post]
func (a *AccountController) CompleteOnboarding(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req request_models.CompleteOnboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	profile, err := a.accountService.CompleteOnboarding(c.Request.Context(), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, profile, "Onboarding completed")
}

// ListSubjects godoc
// @Summary List the caller's subjects
// @Tags Auth
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /auth/subjects [get]
func (a *AccountController) ListSubjects(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	subjects, err := a.accountService.ListSubjects(c.Request.Context(), userID)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, subjects, "Subjects fetched successfully")
}

// CreateSubject godoc
// @Summary Add a subject
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body request_models.SubjectRequest true "Subject"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /auth/subjects [post]
func (a *AccountController) CreateSubject(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req request_models.SubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	subject, err := a.accountService.CreateSubject(c.Request.Context(), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, subject, "Subject created successfully")
}

// UpdateSubject godoc
// @Summary Update a subject
// @Tags Auth
// @Accept json
// @Produce json
// @Param subjectId path string true "Subject ID"
// @Param request body request_models.SubjectRequest true "Subject"
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /auth/subjects/{subjectId} [put]
func (a *AccountController) UpdateSubject(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req request_models.SubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	subject, err := a.accountService.UpdateSubject(c.Request.Context(), userID, c.Param("subjectId"), req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, subject, "Subject updated successfully")
}

// DeleteSubject godoc
// @Summary Delete a subject
// @Tags Auth
// @Produce json
// @Param subjectId path string true "Subject ID"
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /auth/subjects/{subjectId} [delete]
func (a *AccountController) DeleteSubject(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := a.accountService.DeleteSubject(c.Request.Context(), userID, c.Param("subjectId")); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, nil, "Subject deleted successfully")
}

// OAuthRedirect returns a handler that sends the browser to the provider's
// consent page.
func (a *AccountController) OAuthRedirect(provider db_models.AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		url, err := a.accountService.OAuthURL(c.Request.Context(), provider)
		if err != nil {
			utils.HandleServiceError(c, err)
			return
		}
		c.Redirect(http.StatusFound, url)
	}
}

// OAuthCallback returns a handler that finishes the provider login and
// responds with a token.
func (a *AccountController) OAuthCallback(provider db_models.AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if msg := c.Query("error"); msg != "" {
			utils.RespondError(c, http.StatusUnauthorized, "OAuth login was cancelled: "+msg)
			return
		}
		state, code := c.Query("state"), c.Query("code")
		if state == "" || code == "" {
			utils.RespondError(c, http.StatusBadRequest, "state and code are required")
			return
		}

		res, err := a.accountService.OAuthCallback(c.Request.Context(), provider, state, code)
		if err != nil {
			utils.HandleServiceError(c, err)
			return
		}

		utils.RespondSuccess(c, res, "Login successful")
	}
}
