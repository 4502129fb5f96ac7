// Package service contains application services for authentication and patient records.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgcrypto "github.com/and161185/patient-registry/internal/crypto"
	"github.com/and161185/patient-registry/internal/errs"
	"github.com/and161185/patient-registry/internal/limiter"
	"github.com/and161185/patient-registry/internal/model"
	"github.com/and161185/patient-registry/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// rememberAudience scopes remember-me tokens so no other HS256 token signed with
// the same key is accepted as one.
const rememberAudience = "remember-me"

// AuthService defines login, session and bootstrap operations.
type AuthService interface {
	// Login applies rate-limiting, verifies credentials and opens a session.
	Login(ctx context.Context, username, password, remote string) (model.Session, error)
	// IssueRememberMe stores a new series and returns its signed token and expiry.
	IssueRememberMe(ctx context.Context, username string) (token string, expiresAt time.Time, err error)
	// LoginWithRememberMe opens a session from a remember-me token.
	LoginWithRememberMe(ctx context.Context, token string) (model.Session, error)
	// Identify resolves a live session to the caller identity.
	Identify(ctx context.Context, sessionID string) (model.Identity, error)
	// Logout drops the session and, when given, the remember-me series.
	Logout(ctx context.Context, sessionID, rememberToken string) error
	// EnsurePrincipal creates the principal unless the username exists.
	EnsurePrincipal(ctx context.Context, username, password string, roles []model.Role) (bool, error)
	// PurgeExpired removes expired sessions and remember tokens.
	PurgeExpired(ctx context.Context) (int64, error)
}

// AuthOptions are the tunables of AuthServiceImpl.
type AuthOptions struct {
	SignKey    []byte        // HS256 key for remember-me tokens
	SessionTTL time.Duration // fixed session lifetime
}

type AuthServiceImpl struct {
	principals repository.PrincipalRepository
	sessions   repository.SessionRepository
	tokens     repository.RememberTokenRepository
	lim        limiter.Limiter
	hasher     *pkgcrypto.Hasher
	signKey    []byte
	sessionTTL time.Duration
	now        func() time.Time
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(
	principals repository.PrincipalRepository,
	sessions repository.SessionRepository,
	tokens repository.RememberTokenRepository,
	lim limiter.Limiter,
	hasher *pkgcrypto.Hasher,
	opts AuthOptions,
) *AuthServiceImpl {
	if lim == nil {
		lim = limiter.Noop{}
	}
	return &AuthServiceImpl{
		principals: principals,
		sessions:   sessions,
		tokens:     tokens,
		lim:        lim,
		hasher:     hasher,
		signKey:    opts.SignKey,
		sessionTTL: opts.SessionTTL,
		now:        time.Now,
	}
}

// Login authenticates with rate limiting by (username, client host).
// Unknown user and wrong password fail identically.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password, remote string) (model.Session, error) {
	k := limiter.Key{Username: username, Client: limiter.HashClient(remote)}

	allowed, _, err := s.lim.Allow(ctx, k)
	if err != nil {
		return model.Session{}, err
	}
	if !allowed {
		return model.Session{}, errs.ErrRateLimited
	}

	p, err := s.principals.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		s.hasher.VerifyNone(password)
		return model.Session{}, s.failure(ctx, k)
	case err != nil:
		return model.Session{}, fmt.Errorf("lookup principal: %w", err)
	case !s.hasher.Verify(password, p.Salt, p.PwdHash):
		return model.Session{}, s.failure(ctx, k)
	}

	// Success: reset counters (best-effort).
	_ = s.lim.Success(ctx, k)

	return s.openSession(ctx, p.Username, p.Roles)
}

// failure records a failed attempt; if the threshold is reached the caller is rate-limited.
func (s *AuthServiceImpl) failure(ctx context.Context, k limiter.Key) error {
	if blocked, _, ferr := s.lim.Failure(ctx, k); ferr == nil && blocked {
		return errs.ErrRateLimited
	}
	return errs.ErrUnauthorized
}

func (s *AuthServiceImpl) openSession(ctx context.Context, username string, roles []model.Role) (model.Session, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return model.Session{}, err
	}
	now := s.now()
	sess := model.Session{
		ID:        id.String(),
		Username:  username,
		Roles:     roles,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, &sess); err != nil {
		return model.Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// IssueRememberMe creates a signed HS256 JWT whose jti is a freshly stored series.
func (s *AuthServiceImpl) IssueRememberMe(ctx context.Context, username string) (string, time.Time, error) {
	series, err := uuid.NewV4()
	if err != nil {
		return "", time.Time{}, err
	}
	now := s.now()
	exp := now.Add(model.RememberMeTTL)
	rec := &model.RememberToken{Series: series, Username: username, IssuedAt: now, ExpiresAt: exp}
	if err := s.tokens.Create(ctx, rec); err != nil {
		return "", time.Time{}, fmt.Errorf("store remember series: %w", err)
	}

	claims := jwt.RegisteredClaims{
		ID:        series.String(),
		Subject:   username,
		Audience:  jwt.ClaimStrings{rememberAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}

func (s *AuthServiceImpl) keyFunc(t *jwt.Token) (any, error) { return s.signKey, nil }

// parseRemember validates the token and returns its claims.
func (s *AuthServiceImpl) parseRemember(token string) (*jwt.RegisteredClaims, uuid.UUID, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(rememberAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, uuid.Nil, err
	}
	series, err := uuid.FromString(claims.ID)
	if err != nil {
		return nil, uuid.Nil, err
	}
	return &claims, series, nil
}

// LoginWithRememberMe honours a token only if signature, expiry and stored series agree.
func (s *AuthServiceImpl) LoginWithRememberMe(ctx context.Context, token string) (model.Session, error) {
	claims, series, err := s.parseRemember(token)
	if err != nil {
		return model.Session{}, errs.ErrUnauthorized
	}

	rec, err := s.tokens.Get(ctx, series)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return model.Session{}, errs.ErrUnauthorized
	case err != nil:
		return model.Session{}, fmt.Errorf("lookup remember series: %w", err)
	}
	if rec.Username != claims.Subject || !s.now().Before(rec.ExpiresAt) {
		return model.Session{}, errs.ErrUnauthorized
	}

	p, err := s.principals.GetByUsername(ctx, rec.Username)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return model.Session{}, errs.ErrUnauthorized
	case err != nil:
		return model.Session{}, fmt.Errorf("lookup principal: %w", err)
	}
	return s.openSession(ctx, p.Username, p.Roles)
}

// Identify returns the identity of a live session.
func (s *AuthServiceImpl) Identify(ctx context.Context, sessionID string) (model.Identity, error) {
	if sessionID == "" {
		return model.Identity{}, errs.ErrUnauthorized
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return model.Identity{}, errs.ErrUnauthorized
	case err != nil:
		return model.Identity{}, fmt.Errorf("lookup session: %w", err)
	}
	if sess.Expired(s.now()) {
		_ = s.sessions.Delete(ctx, sess.ID)
		return model.Identity{}, errs.ErrUnauthorized
	}
	return model.IdentityFromSession(*sess), nil
}

// Logout deletes the session; the remember-me series is removed best-effort.
func (s *AuthServiceImpl) Logout(ctx context.Context, sessionID, rememberToken string) error {
	if sessionID != "" {
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}
	if rememberToken == "" {
		return nil
	}
	// An expired token still names a series worth deleting.
	var claims jwt.RegisteredClaims
	if _, err := jwt.ParseWithClaims(rememberToken, &claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	); err != nil {
		return nil
	}
	if series, err := uuid.FromString(claims.ID); err == nil {
		_ = s.tokens.Delete(ctx, series)
	}
	return nil
}

// EnsurePrincipal hashes the password and inserts the principal if absent.
func (s *AuthServiceImpl) EnsurePrincipal(ctx context.Context, username, password string, roles []model.Role) (bool, error) {
	if username == "" || password == "" || len(roles) == 0 {
		return false, fmt.Errorf("principal %q: %w", username, errs.ErrInvalidArgument)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return false, err
	}
	hash, salt, err := s.hasher.Hash(password)
	if err != nil {
		return false, err
	}
	p := &model.Principal{ID: id, Username: username, PwdHash: hash, Salt: salt, Roles: roles}
	return s.principals.CreateIfAbsent(ctx, p)
}

// PurgeExpired deletes sessions and remember tokens that are past expiry.
func (s *AuthServiceImpl) PurgeExpired(ctx context.Context) (int64, error) {
	now := s.now()
	n, err := s.sessions.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	m, err := s.tokens.DeleteExpired(ctx, now)
	if err != nil {
		return n, fmt.Errorf("purge remember tokens: %w", err)
	}
	return n + m, nil
}

// RunJanitor calls PurgeExpired every interval until ctx is cancelled.
func (s *AuthServiceImpl) RunJanitor(ctx context.Context, every time.Duration, log *zap.Logger) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				log.Warn("purge expired auth state", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("purged expired auth state", zap.Int64("rows", n))
			}
		}
	}
}
