package auth

import (
	"context"
	"sync"
	"time"

	"github.com/dawidpereira/quetty/pkg/quettyerr"
)

// farFutureHorizon is how far out a connection-string-derived token's
// synthetic expiry is set, standing in for "never expires".
const farFutureHorizon = 100 * 365 * 24 * time.Hour

// Provider is the narrow contract every concrete auth strategy satisfies:
// authenticate, refresh, report its type, and report whether it needs
// periodic refresh at all (the connection-string provider never does).
type Provider interface {
	Authenticate(ctx context.Context) (CachedToken, error)
	Refresh(ctx context.Context) (CachedToken, error)
	AuthType() AuthType
	RequiresRefresh() bool
}

// AuthStateManager holds the single shared AuthenticationState that the
// UI-aware provider consults and that device-code polling mutates as it
// progresses. Safe for concurrent use.
type AuthStateManager struct {
	mu    sync.RWMutex
	state AuthenticationState
}

// NewAuthStateManager returns a manager starting in NotAuthenticated.
func NewAuthStateManager() *AuthStateManager {
	return &AuthStateManager{state: AuthenticationState{Kind: NotAuthenticated}}
}

// State returns a copy of the current state.
func (m *AuthStateManager) State() AuthenticationState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// SetAwaitingDeviceCode transitions to AwaitingDeviceCode.
func (m *AuthStateManager) SetAwaitingDeviceCode(info DeviceCodeInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = AuthenticationState{Kind: AwaitingDeviceCode, DeviceCode: &info}
}

// SetAuthenticated transitions to Authenticated with token.
func (m *AuthStateManager) SetAuthenticated(token CachedToken) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = AuthenticationState{Kind: Authenticated, Token: &token}
}

// SetFailed transitions to Failed with reason.
func (m *AuthStateManager) SetFailed(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = AuthenticationState{Kind: Failed, FailedReason: reason}
}

// Reset transitions back to NotAuthenticated.
func (m *AuthStateManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = AuthenticationState{Kind: NotAuthenticated}
}

// ConnectionStringProvider synthesizes a token derived from a connection
// string. It never expires and never needs refresh.
type ConnectionStringProvider struct {
	cfg ConnectionStringConfig
}

// NewConnectionStringProvider validates cfg and returns a provider.
func NewConnectionStringProvider(cfg ConnectionStringConfig) (*ConnectionStringProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ConnectionStringProvider{cfg: cfg}, nil
}

func (p *ConnectionStringProvider) Authenticate(context.Context) (CachedToken, error) {
	return CachedToken{
		Token:     p.cfg.ConnectionString,
		ExpiresAt: time.Now().Add(farFutureHorizon),
		TokenType: "SAS",
	}, nil
}

func (p *ConnectionStringProvider) Refresh(ctx context.Context) (CachedToken, error) {
	return p.Authenticate(ctx)
}

func (p *ConnectionStringProvider) AuthType() AuthType    { return AuthTypeConnectionString }
func (p *ConnectionStringProvider) RequiresRefresh() bool { return false }

// UIAwareProvider is the composite provider the façade talks to: it
// consults the shared AuthenticationState first, and only delegates to a
// fallback provider when NotAuthenticated. Refresh re-runs Authenticate;
// the device-code flow has no separate refresh concept.
type UIAwareProvider struct {
	authState *AuthStateManager
	fallback  Provider
}

// NewUIAwareProvider builds a UIAwareProvider over authState, with an
// optional fallback (nil disables fallback delegation).
func NewUIAwareProvider(authState *AuthStateManager, fallback Provider) *UIAwareProvider {
	return &UIAwareProvider{authState: authState, fallback: fallback}
}

func (p *UIAwareProvider) Authenticate(ctx context.Context) (CachedToken, error) {
	state := p.authState.State()
	switch state.Kind {
	case Authenticated:
		return *state.Token, nil
	case AwaitingDeviceCode:
		return CachedToken{}, &quettyerr.AuthenticationError{Reason: "authentication in progress, complete the device code flow"}
	case Failed:
		return CachedToken{}, &quettyerr.AuthenticationFailed{Reason: state.FailedReason}
	default: // NotAuthenticated
		if p.fallback != nil {
			return p.fallback.Authenticate(ctx)
		}
		return CachedToken{}, &quettyerr.AuthenticationError{Reason: "not authenticated"}
	}
}

func (p *UIAwareProvider) Refresh(ctx context.Context) (CachedToken, error) {
	return p.Authenticate(ctx)
}

func (p *UIAwareProvider) AuthType() AuthType {
	if p.fallback != nil {
		return p.fallback.AuthType()
	}
	return AuthTypeDeviceCode
}

func (p *UIAwareProvider) RequiresRefresh() bool {
	return true
}
