package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

const (
	reportTokenSecretEnv = "REPORT_TOKEN_SECRET"
	tokenIssuer          = "campaignready"
	tokenAudience        = "scan-report"
	hkdfInfo             = "campaignready report token v1"

	DefaultReportTokenTTL = 30 * 24 * time.Hour
)

var (
	ErrInvalidToken  = errors.New("invalid report token")
	ErrExpiredToken  = errors.New("report token has expired")
	ErrScanMismatch  = errors.New("report token was issued for another scan")
	ErrMissingSecret = errors.New("report token secret not set: " + reportTokenSecretEnv)
)

// ReportClaims grant read access to exactly one scan.
type ReportClaims struct {
	ScanID string `json:"scan_id"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies report-access tokens with an HS256 key
// derived from a shared secret.
type TokenService struct {
	key []byte
	now func() time.Time
}

func NewTokenService(secret string) (*TokenService, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	key, err := deriveSigningKey(secret)
	if err != nil {
		return nil, fmt.Errorf("derive report token key: %w", err)
	}
	return &TokenService{key: key, now: time.Now}, nil
}

var (
	defaultServiceOnce sync.Once
	defaultService     *TokenService
	defaultServiceErr  error
)

// DefaultTokenService reads REPORT_TOKEN_SECRET once per process.
func DefaultTokenService() (*TokenService, error) {
	defaultServiceOnce.Do(func() {
		defaultService, defaultServiceErr = NewTokenService(os.Getenv(reportTokenSecretEnv))
	})
	return defaultService, defaultServiceErr
}

func deriveSigningKey(secret string) ([]byte, error) {
	reader := hkdf.New(sha256.New, []byte(secret), []byte(tokenIssuer), []byte(hkdfInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

func (s *TokenService) IssueReportToken(scanID string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(scanID) == "" {
		return "", errors.New("scan id is required")
	}
	if ttl <= 0 {
		ttl = DefaultReportTokenTTL
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ReportClaims{
		ScanID: scanID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			Subject:   scanID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})

	return token.SignedString(s.key)
}

// ValidateReportToken returns the scan id the token grants access to.
func (s *TokenService) ValidateReportToken(tokenString string) (string, error) {
	claims := &ReportClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.key, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithTimeFunc(s.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}
	if !parsed.Valid || claims.ScanID == "" {
		return "", ErrInvalidToken
	}
	return claims.ScanID, nil
}

// Authorize checks that tokenString grants access to scanID.
func (s *TokenService) Authorize(tokenString, scanID string) error {
	got, err := s.ValidateReportToken(tokenString)
	if err != nil {
		return err
	}
	if got != scanID {
		return ErrScanMismatch
	}
	return nil
}
