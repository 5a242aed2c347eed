package auth

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/cloud"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/dawidpereira/quetty/pkg/quettyerr"
)

// ClientCredentialsProvider implements the single-shot client-credentials
// flow: client_id + client_secret + scope, straight to Authenticated or
// Failed. There is no interim state.
type ClientCredentialsProvider struct {
	cfg  AzureAdConfig
	cred *azidentity.ClientSecretCredential
}

// NewClientCredentialsProvider validates cfg and constructs the credential.
func NewClientCredentialsProvider(cfg AzureAdConfig) (*ClientCredentialsProvider, error) {
	tenantID, err := cfg.TenantIDOrError()
	if err != nil {
		return nil, err
	}
	clientID, err := cfg.ClientIDOrError()
	if err != nil {
		return nil, err
	}
	clientSecret, err := cfg.ClientSecretOrError()
	if err != nil {
		return nil, err
	}

	cred, err := azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, &azidentity.ClientSecretCredentialOptions{
		ClientOptions: azcore.ClientOptions{
			Cloud: cloud.Configuration{ActiveDirectoryAuthorityHost: cfg.AuthorityHostOrDefault()},
		},
	})
	if err != nil {
		return nil, &quettyerr.ConfigurationError{Reason: fmt.Sprintf("failed to construct client secret credential: %v", err)}
	}
	return &ClientCredentialsProvider{cfg: cfg, cred: cred}, nil
}

func (p *ClientCredentialsProvider) Authenticate(ctx context.Context) (CachedToken, error) {
	token, err := p.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{p.cfg.ServiceBusScopeOrDefault()}})
	if err != nil {
		return CachedToken{}, &quettyerr.AuthenticationFailed{Reason: err.Error()}
	}
	return CachedToken{
		Token:     token.Token,
		ExpiresAt: token.ExpiresOn,
		TokenType: "Bearer",
	}, nil
}

func (p *ClientCredentialsProvider) Refresh(ctx context.Context) (CachedToken, error) {
	return p.Authenticate(ctx)
}

// Credential exposes the underlying token credential for SDK clients that
// take an azcore.TokenCredential directly (e.g. the Service Bus client).
func (p *ClientCredentialsProvider) Credential() azcore.TokenCredential {
	return p.cred
}

func (p *ClientCredentialsProvider) AuthType() AuthType    { return AuthTypeClientCredentials }
func (p *ClientCredentialsProvider) RequiresRefresh() bool { return true }
