package utils

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultSecret = "dev-secret-change-me"

var (
	jwtSecret   = []byte(defaultSecret)
	secretMutex sync.RWMutex

	blacklistedTokens = make(map[string]time.Time)
	blacklistMutex    sync.RWMutex

	tokenTTL = 24 * time.Hour
)

// SetJWTSecret installs the signing secret. An empty secret keeps the
// development default.
func SetJWTSecret(secret string) {
	secretMutex.Lock()
	defer secretMutex.Unlock()
	if secret == "" {
		InfoLogger.Warn("JWT_SECRET not set, using development secret")
		jwtSecret = []byte(defaultSecret)
		return
	}
	jwtSecret = []byte(secret)
}

func secret() []byte {
	secretMutex.RLock()
	defer secretMutex.RUnlock()
	return jwtSecret
}

type CustomClaims struct {
	UserID       uint   `json:"user_id"`
	Role         string `json:"role"`
	RestaurantID uint   `json:"restaurant_id,omitempty"`
	jwt.RegisteredClaims
}

func GenerateToken(userID uint, role string, restaurantID uint) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		UserID:       userID,
		Role:         role,
		RestaurantID: restaurantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "DeliveryApp",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret())
	if err != nil {
		ErrorLogger.Printf("Error generating token: %v", err)
		return "", err
	}
	return tokenString, nil
}

func ParseToken(tokenString string) (*CustomClaims, error) {
	if IsTokenBlacklisted(tokenString) {
		return nil, errors.New("token has been revoked")
	}

	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || claims.UserID == 0 {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}

// BlacklistToken revokes a token until it would have expired anyway.
func BlacklistToken(token string) {
	blacklistMutex.Lock()
	defer blacklistMutex.Unlock()
	blacklistedTokens[token] = time.Now().Add(tokenTTL)
}

func IsTokenBlacklisted(token string) bool {
	blacklistMutex.RLock()
	expiry, exists := blacklistedTokens[token]
	blacklistMutex.RUnlock()

	if !exists {
		return false
	}
	if time.Now().Before(expiry) {
		return true
	}

	blacklistMutex.Lock()
	delete(blacklistedTokens, token)
	blacklistMutex.Unlock()
	return false
}
