package util

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const contextTeacherKey = "teacher"

type Claims struct {
	TeacherID string `json:"teacher_id"`
	Role      string `json:"role"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// GenerateJWT issues a token for a teacher authenticated by the identity provider.
func GenerateJWT(teacherID, role, email, secret string, expiration time.Duration) (string, error) {
	expirationTime := time.Now().Add(expiration)

	claims := &Claims{
		TeacherID: teacherID,
		Role:      role,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   teacherID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expirationTime),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseJWT(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.TeacherID != "" {
		return claims, nil
	}

	return nil, errors.New("invalid token claims")
}

func SetTeacherInContext(c *gin.Context, claims *Claims) {
	c.Set(contextTeacherKey, claims)
}

func GetTeacherFromContext(c *gin.Context) *Claims {
	v, exists := c.Get(contextTeacherKey)
	if !exists {
		return nil
	}
	claims, ok := v.(*Claims)
	if !ok {
		return nil
	}
	return claims
}
