// Package auth implements email/password accounts and bearer sessions.
package auth

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tradeflow-ai/tradeflow/internal/database"
	"github.com/tradeflow-ai/tradeflow/internal/errors"
	"github.com/tradeflow-ai/tradeflow/internal/logging"
)

// Error codes returned by the auth endpoints.
const (
	CodeUserExists         errors.ErrorCode = "USER_ALREADY_EXISTS"
	CodeInvalidCredentials errors.ErrorCode = "INVALID_EMAIL_OR_PASSWORD"
	CodeInvalidEmail       errors.ErrorCode = "INVALID_EMAIL"
	CodePasswordTooShort   errors.ErrorCode = "PASSWORD_TOO_SHORT"
	CodePasswordTooLong    errors.ErrorCode = "PASSWORD_TOO_LONG"
)

const (
	shortSessionTTL           = 24 * time.Hour
	defaultSessionTTL         = 7 * 24 * time.Hour
	invalidCredentialsMessage = "Invalid email or password"
)

// SignUpInput is the sign-up request.
type SignUpInput struct {
	Name      string
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// SignInInput is the sign-in request. A nil RememberMe counts as true.
type SignInInput struct {
	Email      string
	Password   string
	RememberMe *bool
	IPAddress  string
	UserAgent  string
}

// Result is returned by a successful sign-up or sign-in.
type Result struct {
	Token   string            `json:"token"`
	User    *database.User    `json:"user"`
	Session *database.Session `json:"-"`
}

// SessionView is the current session with its user.
type SessionView struct {
	Session *database.Session `json:"session"`
	User    *database.User    `json:"user"`
}

// Service manages credentials and sessions.
type Service struct {
	repo   database.RepositoryInterface
	tokens *TokenManager
	ttl    time.Duration
	logger *logging.Logger
	now    func() time.Time
}

// NewService creates the auth service. A zero ttl uses seven days.
func NewService(repo database.RepositoryInterface, tokens *TokenManager, ttl time.Duration, logger *logging.Logger) *Service {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Service{
		repo:   repo,
		tokens: tokens,
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", errors.BadRequest(CodeInvalidEmail, "Invalid email")
	}
	return email, nil
}

// ValidatePassword enforces the password length bounds.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < minPasswordLength {
		return errors.BadRequest(CodePasswordTooShort, "Password too short")
	}
	if n > maxPasswordLength {
		return errors.BadRequest(CodePasswordTooLong, "Password too long")
	}
	return nil
}

// SignUp registers a new credential user and opens a session for it.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*Result, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, errors.BadRequest(errors.CodeMissingField, "Name is required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil, errors.Conflict(CodeUserExists, "User already exists")
	} else if !database.IsNotFound(err) {
		return nil, errors.Internal("Failed to create user", err)
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, errors.Internal("Failed to create user", err)
	}

	user := &database.User{Name: name, Email: email}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if stderrors.Is(err, database.ErrConflict) {
			return nil, errors.Conflict(CodeUserExists, "User already exists")
		}
		return nil, errors.Internal("Failed to create user", err)
	}
	account := &database.Account{
		AccountID:  user.ID,
		ProviderID: database.ProviderCredential,
		UserID:     user.ID,
		Password:   &hash,
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, errors.Internal("Failed to create account", err)
	}

	s.logger.WithContext(ctx).WithField("user_id", user.ID).Info("user signed up")
	return s.openSession(ctx, user, s.ttl, in.IPAddress, in.UserAgent)
}

// SignIn verifies an email/password pair and opens a session.
func (s *Service) SignIn(ctx context.Context, in SignInInput) (*Result, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, errors.New(CodeInvalidCredentials, http.StatusUnauthorized, invalidCredentialsMessage)
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if database.IsNotFound(err) {
			s.logger.LogSecurityEvent(ctx, "sign_in_unknown_email", map[string]interface{}{"ip": in.IPAddress})
			return nil, errors.New(CodeInvalidCredentials, http.StatusUnauthorized, invalidCredentialsMessage)
		}
		return nil, errors.Internal("Failed to sign in", err)
	}
	account, err := s.repo.GetAccountByProvider(ctx, user.ID, database.ProviderCredential)
	if err != nil && !database.IsNotFound(err) {
		return nil, errors.Internal("Failed to sign in", err)
	}
	if account == nil || account.Password == nil || !CheckPassword(*account.Password, in.Password) {
		s.logger.LogSecurityEvent(ctx, "sign_in_bad_password", map[string]interface{}{"user_id": user.ID, "ip": in.IPAddress})
		return nil, errors.New(CodeInvalidCredentials, http.StatusUnauthorized, invalidCredentialsMessage)
	}

	ttl := s.ttl
	if in.RememberMe != nil && !*in.RememberMe {
		ttl = shortSessionTTL
	}
	return s.openSession(ctx, user, ttl, in.IPAddress, in.UserAgent)
}

func (s *Service) openSession(ctx context.Context, user *database.User, ttl time.Duration, ip, ua string) (*Result, error) {
	session := &database.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: s.now().Add(ttl),
		IPAddress: optional(ip),
		UserAgent: optional(ua),
	}
	token, err := s.tokens.Issue(user.ID, session.ID, session.ExpiresAt)
	if err != nil {
		return nil, errors.Internal("Failed to issue token", err)
	}
	session.TokenHash = HashToken(token)
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, errors.Internal("Failed to create session", err)
	}
	return &Result{Token: token, User: user, Session: session}, nil
}

// Authenticate resolves a bearer token to its live session.
func (s *Service) Authenticate(ctx context.Context, token string) (*database.Session, error) {
	if token == "" {
		return nil, errors.Unauthorized("")
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, errors.InvalidToken(err)
	}
	session, err := s.repo.GetSessionByTokenHash(ctx, HashToken(token))
	if err != nil {
		if database.IsNotFound(err) {
			return nil, errors.Unauthorized("")
		}
		return nil, errors.Internal("Failed to load session", err)
	}
	if session.ID != claims.SessionID || session.UserID != claims.UserID {
		return nil, errors.InvalidToken(nil)
	}
	if err := s.repo.UpdateSessionActivity(ctx, session.ID); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("failed to update session activity")
	}
	return session, nil
}

// GetSession returns the session and user for token, or nil when the token
// does not resolve to a live session.
func (s *Service) GetSession(ctx context.Context, token string) (*SessionView, error) {
	session, err := s.Authenticate(ctx, token)
	if err != nil {
		if se := errors.GetServiceError(err); se != nil && se.HTTPStatus == http.StatusUnauthorized {
			return nil, nil
		}
		return nil, err
	}
	user, err := s.repo.GetUser(ctx, session.UserID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Internal("Failed to load user", err)
	}
	return &SessionView{Session: session, User: user}, nil
}

// SignOut deletes the session behind token. Unknown tokens are ignored.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.repo.DeleteSession(ctx, HashToken(token)); err != nil {
		return errors.Internal("Failed to sign out", err)
	}
	return nil
}

// PurgeExpired removes expired sessions and verifications.
func (s *Service) PurgeExpired(ctx context.Context) error {
	sessions, err := s.repo.DeleteExpiredSessions(ctx)
	if err != nil {
		return err
	}
	verifications, err := s.repo.DeleteExpiredVerifications(ctx)
	if err != nil {
		return err
	}
	s.logger.WithFields(map[string]interface{}{
		"sessions":      sessions,
		"verifications": verifications,
	}).Info("purged expired auth records")
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
