// Package google implements the Google account connect flow.
package google

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/tradeflow-ai/tradeflow/internal/database"
	"github.com/tradeflow-ai/tradeflow/internal/logging"
)

// Scopes requested when connecting a Google account.
var Scopes = []string{
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

const (
	// CallbackPath is where Google redirects after consent.
	CallbackPath = "/api/auth/google/callback"
	// DefaultReturnPath is the page the browser lands on after the callback.
	DefaultReturnPath = "/integrations"

	defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	stateTTL           = 10 * time.Minute
	maxUserInfoBytes   = 1 << 20
)

// Callback failure reasons, sent back to the browser as ?error=.
const (
	ReasonAccessDenied   = "access_denied"
	ReasonInvalidState   = "invalid_state"
	ReasonMissingCode    = "missing_code"
	ReasonExchangeFailed = "exchange_failed"
	ReasonNoRefreshToken = "missing_refresh_token"
	ReasonStorageFailed  = "storage_failed"
)

// ErrInvalidRedirect is returned for redirect targets outside the site.
var ErrInvalidRedirect = errors.New("redirect_uri must be on the same origin")

// Config configures the connect flow.
type Config struct {
	ClientID     string
	ClientSecret string
	// BaseURL is the public origin of the service, e.g. https://app.example.com.
	BaseURL string
	// Endpoint defaults to Google's OAuth endpoint.
	Endpoint oauth2.Endpoint
	// UserInfoURL defaults to Google's userinfo endpoint.
	UserInfoURL string
	// HTTPClient is used for the token exchange and userinfo calls.
	HTTPClient *http.Client
}

// Service runs the OAuth authorization code flow and stores the tokens.
type Service struct {
	oauth       *oauth2.Config
	base        *url.URL
	states      StateStore
	repo        database.RepositoryInterface
	userInfoURL string
	httpClient  *http.Client
	logger      *logging.Logger
}

// NewService creates the connect flow service.
func NewService(cfg Config, states StateStore, repo database.RepositoryInterface, logger *logging.Logger) (*Service, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("google client id and secret are required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = googleoauth.Endpoint
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultUserInfoURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	return &Service{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  base.String() + CallbackPath,
			Scopes:       Scopes,
		},
		base:        base,
		states:      states,
		repo:        repo,
		userInfoURL: userInfoURL,
		httpClient:  httpClient,
		logger:      logger,
	}, nil
}

func newStateKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// AuthURL starts the flow for userID and returns Google's consent URL.
// redirectURI, when set, must be a path or a URL on the service origin.
func (s *Service) AuthURL(ctx context.Context, userID, redirectURI string) (string, error) {
	if redirectURI != "" {
		if _, err := s.sameOrigin(redirectURI); err != nil {
			return "", err
		}
	}
	key, err := newStateKey()
	if err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	if err := s.states.Save(ctx, key, State{UserID: userID, RedirectURI: redirectURI}, stateTTL); err != nil {
		return "", fmt.Errorf("save state: %w", err)
	}
	return s.oauth.AuthCodeURL(key, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// CallbackParams are the query parameters Google sends to the callback.
type CallbackParams struct {
	Code  string
	State string
	Error string
}

// HandleCallback finishes the flow and returns where to send the browser.
// It never fails: problems are reported through the ?error= parameter.
func (s *Service) HandleCallback(ctx context.Context, p CallbackParams) string {
	var st *State
	if p.State != "" {
		var err error
		st, err = s.states.Consume(ctx, p.State)
		if err != nil {
			if !errors.Is(err, ErrStateNotFound) {
				s.logger.WithContext(ctx).WithError(err).Error("failed to load oauth state")
			}
			return s.fail(nil, ReasonInvalidState)
		}
	}
	if p.Error != "" {
		return s.fail(st, ReasonAccessDenied)
	}
	if st == nil {
		return s.fail(nil, ReasonInvalidState)
	}
	if p.Code == "" {
		return s.fail(st, ReasonMissingCode)
	}

	ctx = logging.WithUserID(ctx, st.UserID)
	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	token, err := s.oauth.Exchange(exchangeCtx, p.Code)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("google code exchange failed")
		return s.fail(st, ReasonExchangeFailed)
	}

	refresh := token.RefreshToken
	if refresh == "" {
		// Google omits the refresh token on re-consent; keep the stored one.
		existing, err := s.repo.GetGoogleIntegration(ctx, st.UserID)
		if err != nil || existing.RefreshToken == "" {
			return s.fail(st, ReasonNoRefreshToken)
		}
		refresh = existing.RefreshToken
	}

	integration := &database.GoogleIntegration{
		UserID:       st.UserID,
		AccessToken:  token.AccessToken,
		RefreshToken: refresh,
		IsActive:     true,
	}
	if email, err := s.fetchEmail(exchangeCtx, token); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("google userinfo lookup failed")
	} else if email != "" {
		integration.GoogleEmail = &email
	}

	if _, err := s.repo.UpsertGoogleIntegration(ctx, integration); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("failed to store google integration")
		return s.fail(st, ReasonStorageFailed)
	}

	s.logger.WithContext(ctx).Info("google account connected")
	return s.returnURL(st, "connected", "google")
}

func (s *Service) fetchEmail(ctx context.Context, token *oauth2.Token) (string, error) {
	resp, err := s.oauth.Client(ctx, token).Get(s.userInfoURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(body, "email").String(), nil
}

func (s *Service) fail(st *State, reason string) string {
	return s.returnURL(st, "error", reason)
}

// returnURL builds the post-callback redirect with key=value appended.
func (s *Service) returnURL(st *State, key, value string) string {
	target := &url.URL{Path: DefaultReturnPath}
	if st != nil && st.RedirectURI != "" {
		if u, err := s.sameOrigin(st.RedirectURI); err == nil {
			target = u
		}
	}
	q := target.Query()
	q.Set(key, value)
	target.RawQuery = q.Encode()
	return target.String()
}

// sameOrigin parses raw and accepts it only when it stays on the service
// origin. The result is relative to the origin.
func (s *Service) sameOrigin(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, ErrInvalidRedirect
	}
	if u.Scheme != "" || u.Host != "" {
		if !strings.EqualFold(u.Scheme, s.base.Scheme) || !strings.EqualFold(u.Host, s.base.Host) {
			return nil, ErrInvalidRedirect
		}
	}
	if !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return nil, ErrInvalidRedirect
	}
	return &url.URL{Path: u.Path, RawQuery: u.RawQuery}, nil
}
