package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Роли пользователей в токене
const (
	RoleSchool = "school"
	RoleAdmin  = "admin"
)

// Claims содержит полезную нагрузку JWT токена
type Claims struct {
	SchoolID string `json:"school_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware проверяет аутентификацию пользователя по JWT
type AuthMiddleware struct {
	Secret []byte
	Issuer string
}

// NewAuthMiddleware создает новый экземпляр AuthMiddleware
func NewAuthMiddleware(secret, issuer string) *AuthMiddleware {
	return &AuthMiddleware{Secret: []byte(secret), Issuer: issuer}
}

// RequireAuth middleware для проверки аутентификации
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status": "error",
				"error":  "Authorization header is required",
			})
			c.Abort()
			return
		}

		claims, err := am.ParseToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status": "error",
				"error":  "Invalid or expired token: " + err.Error(),
			})
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Set("school_id", claims.SchoolID)
		c.Set("role", claims.Role)

		c.Next()
	}
}

// RequireAdmin middleware для административных маршрутов
func (am *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{
				"status": "error",
				"error":  "Требуются права администратора",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// ParseToken проверяет подпись и срок действия токена
func (am *AuthMiddleware) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи: %v", t.Header["alg"])
		}
		return am.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("токен недействителен")
	}
	if am.Issuer != "" && claims.Issuer != am.Issuer {
		return nil, fmt.Errorf("неверный издатель токена")
	}
	return claims, nil
}

// IssueToken выпускает JWT для заведения или администратора
func (am *AuthMiddleware) IssueToken(schoolID uuid.UUID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		SchoolID: schoolID.String(),
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    am.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(am.Secret)
}

// extractToken извлекает токен из заголовка Authorization
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		authHeader = c.GetHeader("authorization")
	}
	if authHeader == "" {
		return ""
	}

	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if strings.HasPrefix(authHeader, "Token ") {
		return strings.TrimPrefix(authHeader, "Token ")
	}
	return authHeader
}

// GetSchoolID возвращает идентификатор заведения из контекста запроса
func GetSchoolID(c *gin.Context) (uuid.UUID, error) {
	raw := c.GetString("school_id")
	if raw == "" {
		return uuid.Nil, fmt.Errorf("заведение не определено")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("некорректный идентификатор заведения: %w", err)
	}
	return id, nil
}

// GetRole возвращает роль текущего пользователя из контекста
func GetRole(c *gin.Context) string {
	return c.GetString("role")
}
