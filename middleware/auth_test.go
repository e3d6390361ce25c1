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
)

func setupAuthTestRouter(am *AuthMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	protected := r.Group("/api")
	protected.Use(am.RequireAuth())
	protected.GET("/me", func(c *gin.Context) {
		schoolID, err := GetSchoolID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"data":   gin.H{"school_id": schoolID.String(), "role": GetRole(c)},
		})
	})

	admin := r.Group("/api/admin")
	admin.Use(am.RequireAuth(), am.RequireAdmin())
	admin.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})

	return r
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	am := NewAuthMiddleware("test-secret-key-for-unit-tests-only", "bilim-billing")
	r := setupAuthTestRouter(am)

	schoolID := uuid.New()
	token, err := am.IssueToken(schoolID, RoleSchool, time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), schoolID.String())
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	am := NewAuthMiddleware("test-secret-key-for-unit-tests-only", "bilim-billing")
	r := setupAuthTestRouter(am)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/me", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	am := NewAuthMiddleware("test-secret-key-for-unit-tests-only", "bilim-billing")
	r := setupAuthTestRouter(am)

	token, err := am.IssueToken(uuid.New(), RoleSchool, -time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	issuer := NewAuthMiddleware("another-secret-entirely-for-testing", "bilim-billing")
	am := NewAuthMiddleware("test-secret-key-for-unit-tests-only", "bilim-billing")
	r := setupAuthTestRouter(am)

	token, err := issuer.IssueToken(uuid.New(), RoleSchool, time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_RequireAdmin(t *testing.T) {
	am := NewAuthMiddleware("test-secret-key-for-unit-tests-only", "bilim-billing")
	r := setupAuthTestRouter(am)

	schoolToken, err := am.IssueToken(uuid.New(), RoleSchool, time.Hour)
	require.NoError(t, err)
	adminToken, err := am.IssueToken(uuid.New(), RoleAdmin, time.Hour)
	require.NoError(t, err)

	// Обычная роль не проходит
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+schoolToken)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Администратор проходит
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_TokenPrefixVariants(t *testing.T) {
	am := NewAuthMiddleware("test-secret-key-for-unit-tests-only", "bilim-billing")
	r := setupAuthTestRouter(am)

	token, err := am.IssueToken(uuid.New(), RoleSchool, time.Hour)
	require.NoError(t, err)

	for _, header := range []string{"Bearer " + token, "Token " + token, token} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/me", nil)
		req.Header.Set("Authorization", header)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "заголовок: %s", header)
	}
}
