package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/giovanna-britto/Snake-Battle/internal/config"
	"github.com/giovanna-britto/Snake-Battle/internal/crypto"
	"github.com/giovanna-britto/Snake-Battle/internal/domain"
)

// Roles carried in access tokens.
const (
	RolePlayer = "player"
	RoleAdmin  = "admin"
)

// ──────────────────────────────────────────────────────────────────────────────
// Request / Response types
// ──────────────────────────────────────────────────────────────────────────────

// Challenge is the message a wallet must personal-sign to log in.
type Challenge struct {
	Address   common.Address `json:"address"`
	Message   string         `json:"message"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// LoginRequest carries a signed challenge.
type LoginRequest struct {
	Address   string `json:"address"   binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// LoginResponse is returned on successful login or refresh.
type LoginResponse struct {
	Address      common.Address `json:"address"`
	Role         string         `json:"role"`
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
}

// ──────────────────────────────────────────────────────────────────────────────
// JWT claims
// ──────────────────────────────────────────────────────────────────────────────

// AppClaims extends jwt.RegisteredClaims with application-specific fields.
// Subject is the hex identity of the caller.
type AppClaims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	TokenType string `json:"type"` // "access" or "refresh"
}

// Address returns the caller identity carried in the subject.
func (c *AppClaims) Address() (common.Address, error) {
	if !common.IsHexAddress(c.Subject) {
		return common.Address{}, domain.ErrTokenInvalid
	}
	return common.HexToAddress(c.Subject), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Challenge storage
// ──────────────────────────────────────────────────────────────────────────────

// ChallengeStore keeps one outstanding login message per address. Take must
// remove what it returns so a signature can be used only once. Implemented by
// MemoryChallenges and the Redis ChallengeStore.
type ChallengeStore interface {
	Put(ctx context.Context, addr common.Address, message string, ttl time.Duration) error
	Take(ctx context.Context, addr common.Address) (string, error)
}

// MemoryChallenges is an in-process ChallengeStore.
type MemoryChallenges struct {
	mu      sync.Mutex
	pending map[common.Address]memChallenge
	now     func() time.Time
}

type memChallenge struct {
	message string
	expires time.Time
}

// NewMemoryChallenges creates an empty MemoryChallenges.
func NewMemoryChallenges() *MemoryChallenges {
	return &MemoryChallenges{pending: make(map[common.Address]memChallenge), now: time.Now}
}

// Put implements ChallengeStore.
func (m *MemoryChallenges) Put(_ context.Context, addr common.Address, message string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[addr] = memChallenge{message: message, expires: m.now().Add(ttl)}
	return nil
}

// Take implements ChallengeStore.
func (m *MemoryChallenges) Take(_ context.Context, addr common.Address) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.pending[addr]
	delete(m.pending, addr)
	if !ok || !m.now().Before(c.expires) {
		return "", domain.ErrChallengeExpired
	}
	return c.message, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// AuthService
// ──────────────────────────────────────────────────────────────────────────────

// AuthService handles wallet-signature login and JWT token operations.
// There are no passwords: an identity proves itself by signing a one-time
// challenge with its key.
type AuthService struct {
	challenges ChallengeStore
	cfg        *config.Config
	log        *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(challenges ChallengeStore, cfg *config.Config, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{challenges: challenges, cfg: cfg, log: logger.With("component", "auth")}
}

// ──────────────────────────────────────────────────────────────────────────────
// Challenge / Login
// ──────────────────────────────────────────────────────────────────────────────

// Challenge issues a fresh login message for addr, replacing any earlier one.
func (s *AuthService) Challenge(ctx context.Context, addr common.Address) (*Challenge, error) {
	now := time.Now().UTC()
	msg := fmt.Sprintf("Sign in to %s\nAddress: %s\nNonce: %s\nIssued: %s",
		s.cfg.Ledger.Name, addr.Hex(), uuid.NewString(), now.Format(time.RFC3339))

	if err := s.challenges.Put(ctx, addr, msg, s.cfg.JWT.ChallengeTTL); err != nil {
		return nil, fmt.Errorf("auth_service.Challenge: %w", err)
	}
	return &Challenge{Address: addr, Message: msg, ExpiresAt: now.Add(s.cfg.JWT.ChallengeTTL)}, nil
}

// Login verifies a signature over the outstanding challenge of req.Address
// and returns a fresh token pair. The challenge is consumed whether or not
// the signature is valid.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	addr, err := domain.ParseAddress(req.Address)
	if err != nil {
		return nil, err
	}

	msg, err := s.challenges.Take(ctx, addr)
	if err != nil {
		if errors.Is(err, domain.ErrChallengeExpired) {
			return nil, err
		}
		return nil, fmt.Errorf("auth_service.Login: %w", err)
	}
	if err := crypto.Verify([]byte(msg), req.Signature, addr); err != nil {
		s.log.Warn("login signature rejected", "address", addr.Hex())
		return nil, err
	}

	resp, err := s.issue(addr)
	if err != nil {
		return nil, fmt.Errorf("auth_service.Login: %w", err)
	}
	s.log.Info("login", "address", addr.Hex(), "role", resp.Role)
	return resp, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// RefreshToken
// ──────────────────────────────────────────────────────────────────────────────

// RefreshToken validates a refresh token and issues a new token pair. The
// role is recomputed so admin changes take effect on refresh.
func (s *AuthService) RefreshToken(_ context.Context, refreshToken string) (*LoginResponse, error) {
	claims, err := s.parseToken(refreshToken, s.cfg.JWT.RefreshSecret)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "refresh" {
		return nil, domain.ErrTokenInvalid
	}
	addr, err := claims.Address()
	if err != nil {
		return nil, err
	}

	resp, err := s.issue(addr)
	if err != nil {
		return nil, fmt.Errorf("auth_service.RefreshToken: %w", err)
	}
	return resp, nil
}

// ParseAccessToken is exported for use by the JWT middleware.
func (s *AuthService) ParseAccessToken(tokenString string) (*AppClaims, error) {
	claims, err := s.parseToken(tokenString, s.cfg.JWT.AccessSecret)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "access" {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Token helpers
// ──────────────────────────────────────────────────────────────────────────────

func (s *AuthService) roleFor(addr common.Address) string {
	if s.cfg.IsAdmin(addr.Hex()) {
		return RoleAdmin
	}
	return RolePlayer
}

// issue creates a signed access token (AccessTTL) and a signed refresh token
// (RefreshTTL) for addr.
func (s *AuthService) issue(addr common.Address) (*LoginResponse, error) {
	now := time.Now().UTC()
	role := s.roleFor(addr)

	access, err := s.sign(AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   addr.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWT.AccessTTL)),
		},
		Role:      role,
		TokenType: "access",
	}, s.cfg.JWT.AccessSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.sign(AppClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   addr.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWT.RefreshTTL)),
		},
		TokenType: "refresh",
	}, s.cfg.JWT.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	return &LoginResponse{Address: addr, Role: role, AccessToken: access, RefreshToken: refresh}, nil
}

func (s *AuthService) sign(claims AppClaims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// parseToken validates the token signature, algorithm, and expiry.
func (s *AuthService) parseToken(tokenString, secret string) (*AppClaims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &AppClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, domain.ErrTokenExpired
	}
	if err != nil || !tok.Valid {
		return nil, domain.ErrTokenInvalid
	}
	claims, ok := tok.Claims.(*AppClaims)
	if !ok {
		return nil, domain.ErrTokenInvalid
	}
	return claims, nil
}
