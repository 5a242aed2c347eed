package management

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/dawidpereira/quetty/pkg/quettyerr"
	"github.com/dawidpereira/quetty/pkg/util"
)

const (
	apiVersionSubscriptions      = "2022-12-01"
	apiVersionResourceGroups     = "2021-04-01"
	apiVersionServiceBus         = "2021-11-01"
	defaultManagementHTTPTimeout = 30 * time.Second
)

// managementBaseURL is a var rather than a const so tests can point it at an
// httptest server.
var managementBaseURL = "https://management.azure.com"

// TokenSource returns a bearer token to authorize management-API calls.
// pkg/auth's Provider and UIAwareProvider both satisfy this trivially via a
// thin adapter, since their Authenticate method returns more than a bare
// string; callers pass a closure.
type TokenSource func(ctx context.Context) (string, error)

// Client is the HTTP/JSON client over the Azure Management endpoint. API
// versions are fixed per resource family.
type Client struct {
	http   util.HTTPDoer
	token  TokenSource
	logger logr.Logger
}

// NewClient builds a management Client. If httpClient is nil, a default one
// is created via util.CreateHTTPClient.
func NewClient(httpClient util.HTTPDoer, token TokenSource, logger logr.Logger) *Client {
	if httpClient == nil {
		httpClient = util.CreateHTTPClient(defaultManagementHTTPTimeout, false)
	}
	return &Client{http: httpClient, token: token, logger: logger}
}

// ListSubscriptions lists all subscriptions visible to the caller's token.
func (c *Client) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	url := fmt.Sprintf("%s/subscriptions?api-version=%s", managementBaseURL, apiVersionSubscriptions)
	return paginate[Subscription](ctx, c, "ListSubscriptions", url)
}

// ListResourceGroups lists resource groups within subscriptionID.
func (c *Client) ListResourceGroups(ctx context.Context, subscriptionID string) ([]ResourceGroup, error) {
	url := fmt.Sprintf("%s/subscriptions/%s/resourcegroups?api-version=%s", managementBaseURL, subscriptionID, apiVersionResourceGroups)
	return paginate[ResourceGroup](ctx, c, "ListResourceGroups", url)
}

// ListNamespaces lists Service Bus namespaces within subscriptionID.
func (c *Client) ListNamespaces(ctx context.Context, subscriptionID string) ([]ServiceBusNamespace, error) {
	url := fmt.Sprintf("%s/subscriptions/%s/providers/Microsoft.ServiceBus/namespaces?api-version=%s",
		managementBaseURL, subscriptionID, apiVersionServiceBus)
	return paginate[ServiceBusNamespace](ctx, c, "ListNamespaces", url)
}

// ListQueues lists queues within the given namespace.
func (c *Client) ListQueues(ctx context.Context, subscriptionID, resourceGroup, namespace string) ([]QueueDescription, error) {
	url := fmt.Sprintf("%s/subscriptions/%s/resourceGroups/%s/providers/Microsoft.ServiceBus/namespaces/%s/queues?api-version=%s",
		managementBaseURL, subscriptionID, resourceGroup, namespace, apiVersionServiceBus)
	return paginate[QueueDescription](ctx, c, "ListQueues", url)
}

// GetConnectionString retrieves the RootManageSharedAccessKey primary
// connection string for the given namespace.
func (c *Client) GetConnectionString(ctx context.Context, subscriptionID, resourceGroup, namespace string) (string, error) {
	url := fmt.Sprintf("%s/subscriptions/%s/resourceGroups/%s/providers/Microsoft.ServiceBus/namespaces/%s/authorizationRules/RootManageSharedAccessKey/listKeys?api-version=%s",
		managementBaseURL, subscriptionID, resourceGroup, namespace, apiVersionServiceBus)
	return c.postForConnectionString(ctx, "GetConnectionString", url)
}

// GetConnectionStringByID is a convenience entry point parsing a full ARM
// resource ID (.../subscriptions/{sub}/resourceGroups/{rg}/providers/
// Microsoft.ServiceBus/namespaces/{ns}) into its segments before delegating
// to GetConnectionString.
func (c *Client) GetConnectionStringByID(ctx context.Context, resourceID string) (string, error) {
	parts := strings.Split(strings.Trim(resourceID, "/"), "/")
	var subscriptionID, resourceGroup, namespace string
	for i := 0; i < len(parts)-1; i++ {
		switch strings.ToLower(parts[i]) {
		case "subscriptions":
			subscriptionID = parts[i+1]
		case "resourcegroups":
			resourceGroup = parts[i+1]
		case "namespaces":
			namespace = parts[i+1]
		}
	}
	if subscriptionID == "" || resourceGroup == "" || namespace == "" {
		return "", &quettyerr.InternalError{Debug: fmt.Sprintf("could not parse resource id: %s", resourceID)}
	}
	return c.GetConnectionString(ctx, subscriptionID, resourceGroup, namespace)
}

func (c *Client) postForConnectionString(ctx context.Context, operation, url string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, url, bytes.NewReader([]byte("{}")))
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &quettyerr.ConnectionFailed{Reason: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newAzureAPIError(operation, resp, body)
	}

	var keys AccessKeys
	if err := json.Unmarshal(body, &keys); err != nil {
		return "", &quettyerr.InternalError{Debug: fmt.Sprintf("decoding listKeys response: %v", err)}
	}
	return keys.PrimaryConnectionString, nil
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &quettyerr.InternalError{Debug: err.Error()}
	}
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// paginate performs the shared list-endpoint pattern: GET firstURL, decode
// {value, nextLink}, and if nextLink is present GET it verbatim and
// concatenate, repeating until nextLink is absent.
func paginate[T any](ctx context.Context, c *Client, operation, firstURL string) ([]T, error) {
	var all []T
	url := firstURL

	for url != "" {
		req, err := c.newRequest(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, &quettyerr.ConnectionFailed{Reason: err.Error()}
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, newAzureAPIError(operation, resp, body)
		}
		if readErr != nil {
			return nil, &quettyerr.InternalError{Debug: readErr.Error()}
		}

		var page listResponse[T]
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, &quettyerr.InternalError{Debug: fmt.Sprintf("decoding %s response: %v", operation, err)}
		}
		all = append(all, page.Value...)

		if page.NextLink == nil {
			break
		}
		url = *page.NextLink
	}

	return all, nil
}

// armError is the standard ARM error envelope: {"error": {"code", "message"}}.
type armError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newAzureAPIError(operation string, resp *http.Response, body []byte) error {
	var parsed armError
	code, message := "", string(body)
	if json.Unmarshal(body, &parsed) == nil && parsed.Error.Code != "" {
		code = parsed.Error.Code
		message = parsed.Error.Message
	}
	return &quettyerr.AzureAPIError{
		Operation:  operation,
		HTTPStatus: resp.StatusCode,
		AzureCode:  code,
		Message:    message,
		RequestID:  resp.Header.Get("x-ms-request-id"),
	}
}
