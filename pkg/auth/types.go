// Package auth implements the authentication providers, token cache, and
// background refresh service that keep Service Bus and management-API
// operations non-blocking: Azure AD device-code and client-credentials
// flows, a connection-string SAS provider, and a composite UI-aware provider
// that consults a shared AuthenticationState before delegating.
package auth

import (
	"time"

	"github.com/dawidpereira/quetty/pkg/quettyerr"
	"github.com/dawidpereira/quetty/pkg/util"
)

// AuthType identifies which provider produced a token.
type AuthType int

const (
	AuthTypeDeviceCode AuthType = iota
	AuthTypeClientCredentials
	AuthTypeConnectionString
)

func (t AuthType) String() string {
	switch t {
	case AuthTypeClientCredentials:
		return "ClientCredentials"
	case AuthTypeConnectionString:
		return "ConnectionString"
	default:
		return "DeviceCode"
	}
}

// StateKind tags the variant of AuthenticationState currently held.
type StateKind int

const (
	NotAuthenticated StateKind = iota
	AwaitingDeviceCode
	Authenticated
	Failed
)

// DeviceCodeInfo carries the information a device-code flow needs to show
// the operator: the short code, the verification URL, and a ready-to-display
// message.
type DeviceCodeInfo struct {
	UserCode        string
	VerificationURI string
	Message         string
}

// AuthenticationState is a tagged variant: NotAuthenticated,
// AwaitingDeviceCode, Authenticated, or Failed. Transitions are monotonic in
// one direction per attempt: NotAuthenticated -> AwaitingDeviceCode ->
// Authenticated | Failed, or NotAuthenticated -> Authenticated | Failed
// directly.
type AuthenticationState struct {
	Kind         StateKind
	DeviceCode   *DeviceCodeInfo
	Token        *CachedToken
	FailedReason string
}

// CachedToken is a bearer token plus its expiry.
type CachedToken struct {
	Token        string
	ExpiresAt    time.Time
	TokenType    string
	RefreshToken string
}

// refreshBuffer is the window before expiry within which a token is
// considered due for refresh.
const refreshBuffer = 5 * time.Minute

// IsExpired reports whether the token has already expired.
func (t CachedToken) IsExpired() bool {
	return !time.Now().Before(t.ExpiresAt)
}

// NeedsRefresh reports whether the token is within refreshBuffer of expiry.
func (t CachedToken) NeedsRefresh() bool {
	return !time.Now().Add(refreshBuffer).Before(t.ExpiresAt)
}

// ConnectionStringConfig configures the connection-string SAS provider.
type ConnectionStringConfig struct {
	ConnectionString string
}

// Validate reports a ConfigurationError if the connection string is missing.
func (c ConnectionStringConfig) Validate() error {
	if c.ConnectionString == "" {
		return &quettyerr.ConfigurationError{Reason: "SERVICEBUS_CONNECTION_STRING is required but not found or empty"}
	}
	return nil
}

// Default endpoints and scopes for Azure AD authentication against the
// public cloud.
const (
	defaultAuthorityHost   = "https://login.microsoftonline.com"
	defaultServiceBusScope = "https://servicebus.azure.net/.default"
	defaultManagementScope = "https://management.azure.com/.default"
)

// AzureAdConfig configures both the device-code and client-credentials Azure
// AD providers. Not every field is required by both flows; each flow reads
// the fields it needs through TenantIDOrError, ClientIDOrError and
// ClientSecretOrError, which report a missing field as a ConfigurationError.
type AzureAdConfig struct {
	TenantID        string
	ClientID        string
	ClientSecret    string // required for client-credentials flow only
	AuthorityHost   string
	Scope           string
	UseDeviceCode   bool
	PollIntervalSec int
}

// TenantIDOrError returns TenantID, or a ConfigurationError naming the
// missing environment variable.
func (c AzureAdConfig) TenantIDOrError() (string, error) {
	if c.TenantID == "" {
		return "", &quettyerr.ConfigurationError{Reason: "AZURE_AD__TENANT_ID is required but not found or empty"}
	}
	return c.TenantID, nil
}

// ClientIDOrError returns ClientID, or a ConfigurationError naming the
// missing environment variable.
func (c AzureAdConfig) ClientIDOrError() (string, error) {
	if c.ClientID == "" {
		return "", &quettyerr.ConfigurationError{Reason: "AZURE_AD__CLIENT_ID is required but not found or empty"}
	}
	return c.ClientID, nil
}

// ClientSecretOrError returns ClientSecret, or a ConfigurationError naming
// the missing environment variable. Only the client-credentials flow needs
// this; the device-code flow never calls it.
func (c AzureAdConfig) ClientSecretOrError() (string, error) {
	if c.ClientSecret == "" {
		return "", &quettyerr.ConfigurationError{Reason: "AZURE_AD__CLIENT_SECRET is required but not found or empty"}
	}
	return c.ClientSecret, nil
}

// AuthorityHostOrDefault returns AuthorityHost, falling back to Azure
// public cloud's default login endpoint.
func (c AzureAdConfig) AuthorityHostOrDefault() string {
	if c.AuthorityHost == "" {
		return defaultAuthorityHost
	}
	return c.AuthorityHost
}

// ServiceBusScopeOrDefault returns Scope, falling back to the Service Bus
// default scope.
func (c AzureAdConfig) ServiceBusScopeOrDefault() string {
	if c.Scope == "" {
		return defaultServiceBusScope
	}
	return c.Scope
}

// ManagementScopeOrDefault returns the scope used for management-API tokens.
func (c AzureAdConfig) ManagementScopeOrDefault() string {
	if c.Scope == "" {
		return defaultManagementScope
	}
	return c.Scope
}

// LoadAzureAdConfigFromEnv reads AZURE_AD__* environment variables into an
// AzureAdConfig. Validation of required-for-flow fields happens lazily via
// the *OrError accessors above, so a flow only demands the fields it uses.
func LoadAzureAdConfigFromEnv() AzureAdConfig {
	useDeviceCode, _ := util.ResolveOsEnvBool("AZURE_AD__USE_DEVICE_CODE", false)
	pollInterval, _ := util.ResolveOsEnvInt("AZURE_AD__POLL_INTERVAL_SECONDS", 5)
	return AzureAdConfig{
		TenantID:        util.ResolveOsEnvString("AZURE_AD__TENANT_ID", ""),
		ClientID:        util.ResolveOsEnvString("AZURE_AD__CLIENT_ID", ""),
		ClientSecret:    util.ResolveOsEnvString("AZURE_AD__CLIENT_SECRET", ""),
		AuthorityHost:   util.ResolveOsEnvString("AZURE_AD__AUTHORITY_HOST", ""),
		Scope:           util.ResolveOsEnvString("AZURE_AD__SCOPE", ""),
		UseDeviceCode:   useDeviceCode,
		PollIntervalSec: pollInterval,
	}
}

// fingerprint names for TokenCache entries.
const (
	FingerprintServiceBus = "service_bus"
	FingerprintManagement = "management_api"
)
