package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// SubjectKey: ключ gin.Context с именем администратора из токена
const SubjectKey = "subject"

const RoleAdmin = "admin"

var ErrAuthDisabled = errors.New("jwt secret is not configured")

// AdminClaims: claims административного токена
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenAuth выдаёт и проверяет HS256 токены администраторов
type TokenAuth struct {
	secret []byte
}

func NewTokenAuth(secret string) *TokenAuth {
	return &TokenAuth{secret: []byte(secret)}
}

// Enabled сообщает, задан ли секрет. Без секрета /api закрыт полностью.
func (a *TokenAuth) Enabled() bool { return len(a.secret) > 0 }

// Issue подписывает токен для subject с указанным сроком жизни
func (a *TokenAuth) Issue(subject, role string, ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", ErrAuthDisabled
	}
	now := time.Now()
	claims := AdminClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Validate разбирает токен и проверяет подпись и срок
func (a *TokenAuth) Validate(tokenString string) (*AdminClaims, error) {
	if !a.Enabled() {
		return nil, ErrAuthDisabled
	}
	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("невалидный токен")
	}
	return claims, nil
}

// Middleware пропускает только запросы с валидным токеном роли admin
func (a *TokenAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, GenericResponse{Success: false, Message: "Административный API отключён"})
			return
		}
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, GenericResponse{Success: false, Message: "Требуется авторизация"})
			return
		}
		claims, err := a.Validate(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, GenericResponse{Success: false, Message: "Недействительный токен"})
			return
		}
		if claims.Role != RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, GenericResponse{Success: false, Message: "Требуются права администратора"})
			return
		}
		c.Set(SubjectKey, claims.Subject)
		c.Next()
	}
}
