package wpauth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/docdyhr/mcp-wordpress/internal/clock"
	wperrors "github.com/docdyhr/mcp-wordpress/pkg/errors"
	"github.com/docdyhr/mcp-wordpress/pkg/observability"
)

// expirySkew is subtracted from a mutable credential's reported expiry
// so refresh happens before the upstream actually rejects the token.
const expirySkew = 30 * time.Second

// Manager drives one site's Auth Manager finite-state machine:
// Uninitialized -> (NeedsLogin ->) Active <-> Refreshing, terminal Failed.
type Manager struct {
	siteID     string
	baseURL    string
	bundle     *Bundle
	httpClient *http.Client
	clock      clock.Clock
	logger     *zap.Logger

	mu    sync.Mutex
	state State
	sf    singleflight.Group

	pendingPKCE  pkcePair
	pendingState string
}

// NewManager constructs an Auth Manager for one site's credential bundle.
func NewManager(siteID, baseURL string, bundle *Bundle, httpClient *http.Client, clk clock.Clock, logger *zap.Logger) *Manager {
	return &Manager{
		siteID:     siteID,
		baseURL:    baseURL,
		bundle:     bundle,
		httpClient: httpClient,
		clock:      clk,
		logger:     logger.With(zap.String("site_id", siteID)),
		state:      StateUninitialized,
	}
}

// State returns the manager's current FSM state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) transition(to State) error {
	if !canTransition(m.state, to) {
		return wperrors.New(wperrors.KindAuthRefreshFailed,
			"invalid auth state transition "+string(m.state)+" -> "+string(to))
	}
	m.logger.Debug("auth state transition", zap.String("from", string(m.state)), zap.String("to", string(to)))
	m.state = to
	return nil
}

// Headers returns the outbound auth header(s) to attach to a request,
// refreshing or logging in first if the credential is mutable and
// either not yet established or close to expiry.
func (m *Manager) Headers(ctx context.Context) (http.Header, error) {
	if err := m.ensureValid(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h := http.Header{}
	switch m.bundle.Scheme {
	case SchemeAppPassword:
		req, _ := http.NewRequest(http.MethodGet, "http://placeholder", nil)
		req.SetBasicAuth(m.bundle.Username, m.bundle.Secret)
		h.Set("Authorization", req.Header.Get("Authorization"))
	case SchemeBasic:
		req, _ := http.NewRequest(http.MethodGet, "http://placeholder", nil)
		req.SetBasicAuth(m.bundle.Username, m.bundle.Secret)
		h.Set("Authorization", req.Header.Get("Authorization"))
	case SchemeJWT:
		h.Set("Authorization", "Bearer "+m.bundle.jwtAccessToken)
	case SchemeOAuth:
		h.Set("Authorization", "Bearer "+m.bundle.oauthAccessToken)
	default:
		return nil, wperrors.New(wperrors.KindAuthMethodUnsupported, "unknown credential scheme")
	}
	return h, nil
}

// ensureValid brings a mutable credential into the Active state,
// performing first-login or refresh as needed. Static credentials
// (AppPassword, Basic) transition straight to Active on first use.
func (m *Manager) ensureValid(ctx context.Context) error {
	m.mu.Lock()
	state := m.state
	scheme := m.bundle.Scheme
	m.mu.Unlock()

	if state == StateFailed {
		return wperrors.New(wperrors.KindAuthRequired, "auth manager is in a terminal failed state; switch credentials")
	}

	if !scheme.Mutable() {
		if state == StateUninitialized {
			m.mu.Lock()
			_ = m.transition(StateActive)
			m.mu.Unlock()
		}
		return nil
	}

	if state == StateUninitialized {
		return m.login(ctx)
	}

	if m.mutableExpiringSoon() {
		return m.Refresh(ctx)
	}
	return nil
}

func (m *Manager) mutableExpiringSoon() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	switch m.bundle.Scheme {
	case SchemeJWT:
		return m.bundle.jwtAccessToken == "" || !now.Before(m.bundle.jwtExpiresAt.Add(-expirySkew))
	case SchemeOAuth:
		return m.bundle.oauthAccessToken == "" || !now.Before(m.bundle.oauthExpiresAt.Add(-expirySkew))
	default:
		return false
	}
}

// login performs the initial authentication for a mutable scheme. For
// JWT this is a username/password login; for OAuth the caller must have
// already driven StartOAuth/CompleteOAuth, so login here only checks
// that a token is present.
func (m *Manager) login(ctx context.Context) error {
	m.mu.Lock()
	scheme := m.bundle.Scheme
	m.mu.Unlock()

	switch scheme {
	case SchemeJWT:
		m.mu.Lock()
		_ = m.transition(StateNeedsLogin)
		m.mu.Unlock()

		if err := m.jwtLogin(ctx); err != nil {
			m.mu.Lock()
			_ = m.transition(StateFailed)
			m.mu.Unlock()
			return err
		}

		m.mu.Lock()
		_ = m.transition(StateActive)
		m.mu.Unlock()
		return nil

	case SchemeOAuth:
		m.mu.Lock()
		hasToken := m.bundle.oauthAccessToken != ""
		m.mu.Unlock()
		if !hasToken {
			m.mu.Lock()
			_ = m.transition(StateNeedsLogin)
			m.mu.Unlock()
			return wperrors.New(wperrors.KindAuthRequired, "oauth flow not completed; call StartOAuth")
		}
		m.mu.Lock()
		_ = m.transition(StateActive)
		m.mu.Unlock()
		return nil

	default:
		return wperrors.New(wperrors.KindAuthMethodUnsupported, "scheme does not require login")
	}
}

// StartOAuth begins an OAuth 2.0 authorization-code-with-PKCE flow and
// returns the URL the caller must open in their own browser.
func (m *Manager) StartOAuth() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bundle.Scheme != SchemeOAuth {
		return "", wperrors.New(wperrors.KindAuthMethodUnsupported, "site is not configured for oauth")
	}
	if err := m.transition(StateNeedsLogin); err != nil {
		return "", err
	}
	return m.startOAuth()
}

// CompleteOAuth finishes the flow StartOAuth began, exchanging the
// authorization code for an access/refresh token pair.
func (m *Manager) CompleteOAuth(ctx context.Context, code, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.completeOAuth(ctx, code, state); err != nil {
		_ = m.transition(StateFailed)
		return err
	}
	return m.transition(StateActive)
}

// Refresh re-establishes a mutable credential, serializing concurrent
// callers onto a single in-flight refresh via singleflight.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err, _ := m.sf.Do(m.siteID, func() (interface{}, error) {
		m.mu.Lock()
		scheme := m.bundle.Scheme
		_ = m.transition(StateRefreshing)
		m.mu.Unlock()

		var refreshErr error
		switch scheme {
		case SchemeJWT:
			refreshErr = m.jwtLogin(ctx)
		case SchemeOAuth:
			refreshErr = m.oauthRefresh(ctx)
		default:
			refreshErr = wperrors.New(wperrors.KindAuthMethodUnsupported, "scheme is not refreshable")
		}

		m.mu.Lock()
		if refreshErr != nil {
			_ = m.transition(StateFailed)
		} else {
			_ = m.transition(StateActive)
		}
		m.mu.Unlock()

		result := "success"
		if refreshErr != nil {
			result = "failed"
		}
		observability.RecordAuthRefresh(m.siteID, string(scheme), result)

		return nil, refreshErr
	})
	return err
}

// Switch replaces the manager's credential bundle, but only once the
// new credential has been validated against the site; if validation
// fails the previous bundle and state are left in place and Switch
// returns an error so the caller can surface validationFailed.
func (m *Manager) Switch(ctx context.Context, bundle *Bundle) error {
	m.mu.Lock()
	oldBundle, oldState := m.bundle, m.state
	m.bundle = bundle
	m.state = StateUninitialized
	m.mu.Unlock()

	if err := m.Validate(ctx); err != nil {
		m.mu.Lock()
		m.bundle, m.state = oldBundle, oldState
		m.mu.Unlock()
		return wperrors.Wrap(wperrors.KindAuthRefreshFailed, "credential switch failed validation", err)
	}
	return nil
}

// Validate confirms the manager's current credential is accepted by
// the site, logging in or refreshing it first if it is mutable and
// not yet established. It probes the same endpoint every authenticated
// request can reach: GET /wp-json/wp/v2/users/me.
func (m *Manager) Validate(ctx context.Context) error {
	headers, err := m.Headers(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	baseURL := m.baseURL
	m.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/wp-json/wp/v2/users/me", nil)
	if err != nil {
		return wperrors.Wrap(wperrors.KindTransportError, "building validation request", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return wperrors.Wrap(wperrors.KindConnectionFailed, "validation request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return wperrors.New(wperrors.KindAuthExpired, "credential rejected by site during validation")
	}
	if resp.StatusCode >= 300 {
		return wperrors.New(wperrors.KindUpstreamClient, "unexpected status validating credential")
	}
	return nil
}
