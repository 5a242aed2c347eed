package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/dawidpereira/quetty/pkg/quettyerr"
)

// DeviceCodeProvider implements the OAuth device-authorization flow: it
// calls the device-authorization endpoint to obtain a user code and
// verification URL, transitions the shared AuthenticationState to
// AwaitingDeviceCode, then polls the token endpoint until the user
// completes the flow or it expires.
//
// Expected interim states (authorization_pending, slow_down) are not
// errors; azidentity's DeviceCodeCredential handles the polling loop
// internally and only returns once the flow reaches a terminal state, so
// this provider's job is to surface the user-code prompt into authState and
// translate the terminal outcome.
type DeviceCodeProvider struct {
	cfg       AzureAdConfig
	authState *AuthStateManager
	cred      *azidentity.DeviceCodeCredential
}

// NewDeviceCodeProvider builds a DeviceCodeProvider. The UserPrompt callback
// azidentity invokes on receiving the device code is wired to record the
// prompt into authState rather than print to a terminal, since the TUI (out
// of scope for this core) is responsible for displaying it.
func NewDeviceCodeProvider(cfg AzureAdConfig, authState *AuthStateManager) (*DeviceCodeProvider, error) {
	tenantID, err := cfg.TenantIDOrError()
	if err != nil {
		return nil, err
	}
	clientID, err := cfg.ClientIDOrError()
	if err != nil {
		return nil, err
	}

	p := &DeviceCodeProvider{cfg: cfg, authState: authState}

	cred, err := azidentity.NewDeviceCodeCredential(&azidentity.DeviceCodeCredentialOptions{
		TenantID: tenantID,
		ClientID: clientID,
		ClientOptions: azcore.ClientOptions{
			Cloud: cloud.Configuration{ActiveDirectoryAuthorityHost: cfg.AuthorityHostOrDefault()},
		},
		UserPrompt: func(_ context.Context, msg azidentity.DeviceCodeMessage) error {
			authState.SetAwaitingDeviceCode(DeviceCodeInfo{
				UserCode:        msg.UserCode,
				VerificationURI: msg.VerificationURL,
				Message:         msg.Message,
			})
			return nil
		},
	})
	if err != nil {
		return nil, &quettyerr.ConfigurationError{Reason: fmt.Sprintf("failed to construct device code credential: %v", err)}
	}
	p.cred = cred
	return p, nil
}

func (p *DeviceCodeProvider) Authenticate(ctx context.Context) (CachedToken, error) {
	token, err := p.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{p.cfg.ServiceBusScopeOrDefault()}})
	if err != nil {
		reason := classifyDeviceCodeError(err)
		p.authState.SetFailed(reason)
		return CachedToken{}, &quettyerr.AuthenticationFailed{Reason: reason}
	}

	cached := CachedToken{
		Token:     token.Token,
		ExpiresAt: token.ExpiresOn,
		TokenType: "Bearer",
	}
	p.authState.SetAuthenticated(cached)
	return cached, nil
}

func (p *DeviceCodeProvider) Refresh(ctx context.Context) (CachedToken, error) {
	return p.Authenticate(ctx)
}

// Credential exposes the underlying token credential for SDK clients that
// take an azcore.TokenCredential directly (e.g. the Service Bus client).
func (p *DeviceCodeProvider) Credential() azcore.TokenCredential {
	return p.cred
}

func (p *DeviceCodeProvider) AuthType() AuthType    { return AuthTypeDeviceCode }
func (p *DeviceCodeProvider) RequiresRefresh() bool { return true }

// classifyDeviceCodeError distinguishes the two terminal device-code failure
// reasons (expired_token, access_denied) from anything else, surfacing the
// former with readable messages.
func classifyDeviceCodeError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "expired_token"), strings.Contains(msg, "token_expired"):
		return "device code expired before authentication completed"
	case strings.Contains(msg, "access_denied"):
		return "user denied the device code authentication request"
	default:
		return msg
	}
}
