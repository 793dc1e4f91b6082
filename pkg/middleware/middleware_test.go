package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exampattern/internal/models/response_models"
	"exampattern/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(TraceIDMiddleware())
	r.GET("/probe", append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(ContextUserID), "role": c.GetString(ContextRole)})
	})...)
	return r
}

func TestJWTAuthMiddleware(t *testing.T) {
	jwt := utils.NewJWTManager("secret", time.Hour)
	r := newRouter(JWTAuthMiddleware(jwt))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	id := uuid.New()
	token, err := jwt.CreateToken(id, "admin")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), id.String())
	assert.Contains(t, w.Body.String(), `"role":"admin"`)
}

func TestRoleMiddleware(t *testing.T) {
	withRole := func(role string) gin.HandlerFunc {
		return func(c *gin.Context) { c.Set(ContextRole, role) }
	}

	w := httptest.NewRecorder()
	newRouter(withRole("user"), RoleMiddleware("admin")).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	newRouter(withRole("admin"), RoleMiddleware("admin")).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireTokens(t *testing.T) {
	asUser := func(c *gin.Context) { c.Set(ContextUserID, "u1") }
	checker := func(available int64) BalanceCheckFunc {
		return func(_ *gin.Context, _ string, action string) (*response_models.TokenCheckResponse, error) {
			return &response_models.TokenCheckResponse{
				ActionType:    action,
				Required:      10,
				Available:     available,
				HasSufficient: available >= 10,
			}, nil
		}
	}

	w := httptest.NewRecorder()
	newRouter(asUser, RequireTokens(checker(3), "examValidation")).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), `"required":10`)
	assert.Contains(t, w.Body.String(), `"available":3`)

	w = httptest.NewRecorder()
	newRouter(asUser, RequireTokens(checker(30), "examValidation")).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	newRouter(RequireTokens(checker(30), "examValidation")).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	failing := BalanceCheckFunc(func(*gin.Context, string, string) (*response_models.TokenCheckResponse, error) {
		return nil, utils.ErrUnknownAction
	})
	w = httptest.NewRecorder()
	newRouter(asUser, RequireTokens(failing, "nope")).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSMiddlewarePreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://app.example.com"}))
	r.GET("/probe", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/probe", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
