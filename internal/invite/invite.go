package invite

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kerokerotur/banars-app/internal/apperr"
	"github.com/kerokerotur/banars-app/internal/model"
)

// Error codes owned by the invite flows.
const (
	CodeInvalidRequest        = "invalid_request"
	CodeExpiresInDaysInvalid  = "expires_in_days_invalid"
	CodeExpiresInDaysOutRange = "expires_in_days_out_of_range"
	CodeTokenNotFound         = "token_not_found"
	CodeTokenExpired          = "token_expired"
	CodeInternalError         = "internal_error"
)

const (
	defaultExpiresInDays = 7
	minExpiresInDays     = 1
	maxExpiresInDays     = 30
)

// Repository stores invite tokens by digest. FindByHash returns
// model.ErrNotFound when no record matches.
type Repository interface {
	Insert(ctx context.Context, token model.InviteToken) error
	FindByHash(ctx context.Context, tokenHash string) (model.InviteToken, error)
}

// Service issues and validates single-use, time-boxed invitation tokens. The
// plaintext is handed out exactly once; storage only ever sees the SHA-256
// digest.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithClock overrides the clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type IssueRequest struct {
	// ExpiresInDays arrives as a JSON number; nil means the 7-day default.
	ExpiresInDays *float64
	IssuedBy      string
}

type IssueResult struct {
	Token     string
	ExpiresAt time.Time
}

// Issue mints a fresh invite token and persists its digest.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (IssueResult, error) {
	issuedBy := strings.TrimSpace(req.IssuedBy)
	if issuedBy == "" {
		return IssueResult{}, apperr.New(CodeInvalidRequest, "issuedBy is required", 400)
	}

	days := defaultExpiresInDays
	if req.ExpiresInDays != nil {
		raw := *req.ExpiresInDays
		if raw != math.Trunc(raw) {
			return IssueResult{}, apperr.New(CodeExpiresInDaysInvalid, "expiresInDays must be an integer", 400)
		}
		days = int(raw)
		if days < minExpiresInDays || days > maxExpiresInDays {
			return IssueResult{}, apperr.New(CodeExpiresInDaysOutRange,
				fmt.Sprintf("expiresInDays must be between %d and %d", minExpiresInDays, maxExpiresInDays), 400)
		}
	}

	plaintext := uuid.NewString()
	now := s.now().UTC()
	token := model.InviteToken{
		TokenHash: HashToken(plaintext),
		ExpiresAt: now.AddDate(0, 0, days),
		IssuedBy:  issuedBy,
		CreatedAt: now,
	}
	if err := s.repo.Insert(ctx, token); err != nil {
		return IssueResult{}, apperr.Wrap(CodeInternalError, "could not store invite token", 500, err)
	}
	return IssueResult{Token: plaintext, ExpiresAt: token.ExpiresAt}, nil
}

// Validate hashes the plaintext, looks the digest up and checks expiry. A
// token expiring exactly now is already invalid.
func (s *Service) Validate(ctx context.Context, plaintext string) (model.InviteToken, error) {
	normalized := strings.TrimSpace(plaintext)
	if normalized == "" {
		return model.InviteToken{}, apperr.New(CodeInvalidRequest, "invite token is required", 400)
	}

	token, err := s.repo.FindByHash(ctx, HashToken(normalized))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.InviteToken{}, apperr.New(CodeTokenNotFound, "invite token not found", 404)
		}
		return model.InviteToken{}, apperr.Wrap(CodeInternalError, "could not look up invite token", 500, err)
	}
	if !token.ExpiresAt.After(s.now()) {
		return model.InviteToken{}, apperr.New(CodeTokenExpired, "invite token has expired", 410)
	}
	return token, nil
}

// HashToken returns the lowercase hex SHA-256 digest of the trimmed plaintext.
func HashToken(plaintext string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(plaintext)))
	return hex.EncodeToString(sum[:])
}
