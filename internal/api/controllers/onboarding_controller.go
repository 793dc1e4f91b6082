package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"exampattern/internal/models/request_models"
	"exampattern/internal/services"
	"exampattern/pkg/utils"
)

type OnboardingController struct {
	onboarding services.OnboardingServiceInterface
}

func NewOnboardingController(onboarding services.OnboardingServiceInterface) *OnboardingController {
	return &OnboardingController{onboarding: onboarding}
}

// ValidateExam godoc
// @Summary Check that an exam name is real
// @Description Costs examValidation tokens, charged only when the model answers
// @Tags Onboarding
// @Accept json
// @Produce json
// @Param request body request_models.ValidateExamRequest true "Exam"
// @Success 200 {object} utils.APIResponse
// @Failure 402 {object} utils.APIResponse
// @Failure 502 {object} utils.APIResponse
// @Security BearerAuth
// @Router /onboarding/validate-exam [post]
func (o *OnboardingController) ValidateExam(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req request_models.ValidateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	res, err := o.onboarding.ValidateExam(c.Request.Context(), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, res, "Exam validated")
}

// SubjectAnalysis godoc
// @Summary Difficulty and priority estimate for a subject
// @Description Costs subjectAnalysis tokens, charged only when the model answers
// @Tags Onboarding
// @Accept json
// @Produce json
// @Param request body request_models.SubjectAnalysisRequest true "Subject"
// @Success 200 {object} utils.APIResponse
// @Failure 402 {object} utils.APIResponse
// @Failure 502 {object} utils.APIResponse
// @Security BearerAuth
// @Router /onboarding/subject-analysis [post]
func (o *OnboardingController) SubjectAnalysis(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req request_models.SubjectAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	res, err := o.onboarding.AnalyzeSubject(c.Request.Context(), userID, req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, res, "Subject analysed")
}
