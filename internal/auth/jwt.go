package auth

import (
	"errors"
	"fmt"
	"time"
	"todo_tracker/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	UsernameKey = "username"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrWrongType    = errors.New("wrong token type")
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

type Claims struct {
	Username string    `json:"username"`
	Type     TokenType `json:"type"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
}

// Issuer signs and validates HS256 identity tokens. Tokens are stateless:
// issuing a new pair never revokes an older one.
type Issuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewIssuer(cfg config.JWTConfig) *Issuer {
	return &Issuer{
		secret:     []byte(cfg.Secret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}
}

// GenerateTokenPair creates both access and refresh tokens for username.
func (i *Issuer) GenerateTokenPair(username string) (*TokenPair, error) {
	accessToken, err := i.generateToken(username, AccessToken, i.accessTTL)
	if err != nil {
		return nil, err
	}

	refreshToken, err := i.generateToken(username, RefreshToken, i.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(i.accessTTL.Seconds()),
	}, nil
}

func (i *Issuer) generateToken(username string, tokenType TokenType, duration time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		Username: username,
		Type:     tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			Issuer:    i.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// ValidateToken validates and parses a JWT token of any type.
func (i *Issuer) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Username == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ValidateTokenOfType validates the token and checks its type claim.
func (i *Issuer) ValidateTokenOfType(tokenString string, tokenType TokenType) (*Claims, error) {
	claims, err := i.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != tokenType {
		return nil, ErrWrongType
	}
	return claims, nil
}

// GetUsernameFromContext extracts the authenticated username from the Gin context.
func GetUsernameFromContext(c *gin.Context) (string, error) {
	value, exists := c.Get(UsernameKey)
	if !exists {
		return "", fmt.Errorf("username not found in context")
	}

	username, ok := value.(string)
	if !ok || username == "" {
		return "", fmt.Errorf("invalid username type")
	}

	return username, nil
}
