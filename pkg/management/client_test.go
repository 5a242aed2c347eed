package management

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-logr/logr"

	"github.com/dawidpereira/quetty/pkg/quettyerr"
)

func staticToken(ctx context.Context) (string, error) {
	return "test-token", nil
}

// overrideBaseURLForTest points managementBaseURL at a test server for the
// duration of the calling test, restoring it on the returned func.
func overrideBaseURLForTest(t *testing.T, url string) func() {
	t.Helper()
	original := managementBaseURL
	managementBaseURL = url
	return func() { managementBaseURL = original }
}

func TestListSubscriptionsFollowsNextLink(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected Authorization header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			next := server2URL(r)
			json.NewEncoder(w).Encode(listResponse[Subscription]{
				Value:    []Subscription{{ID: "/subscriptions/1", SubscriptionID: "1", DisplayName: "first"}},
				NextLink: &next,
			})
			return
		}
		json.NewEncoder(w).Encode(listResponse[Subscription]{
			Value: []Subscription{{ID: "/subscriptions/2", SubscriptionID: "2", DisplayName: "second"}},
		})
	}))
	defer server.Close()

	client := NewClient(http.DefaultClient, staticToken, logr.Discard())
	subs, err := paginate[Subscription](context.Background(), client, "ListSubscriptions", server.URL)
	if err != nil {
		t.Fatalf("paginate: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 subscriptions across pages, got %d", len(subs))
	}
	if subs[0].SubscriptionID != "1" || subs[1].SubscriptionID != "2" {
		t.Errorf("unexpected subscription order: %+v", subs)
	}
}

// server2URL is a test seam: the handler needs to point NextLink back at
// itself so the second page is served by the same test server.
func server2URL(r *http.Request) string {
	return "http://" + r.Host + r.URL.Path + "?page=2"
}

func TestNonSuccessStatusYieldsAzureAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-ms-request-id", "req-123")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":"AuthorizationFailed","message":"not allowed"}}`))
	}))
	defer server.Close()
	defer overrideBaseURLForTest(t, server.URL)()

	client := NewClient(http.DefaultClient, staticToken, logr.Discard())
	_, err := client.ListSubscriptions(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	apiErr, ok := err.(*quettyerr.AzureAPIError)
	if !ok {
		t.Fatalf("expected *quettyerr.AzureAPIError, got %T", err)
	}
	if apiErr.HTTPStatus != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", apiErr.HTTPStatus)
	}
	if apiErr.AzureCode != "AuthorizationFailed" {
		t.Errorf("expected AzureCode AuthorizationFailed, got %q", apiErr.AzureCode)
	}
	if apiErr.RequestID != "req-123" {
		t.Errorf("expected request id req-123, got %q", apiErr.RequestID)
	}
}

func TestGetConnectionStringExtractsPrimary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		json.NewEncoder(w).Encode(AccessKeys{PrimaryConnectionString: "Endpoint=sb://ns.servicebus.windows.net/;SharedAccessKeyName=RootManageSharedAccessKey;SharedAccessKey=abc"})
	}))
	defer server.Close()

	client := NewClient(http.DefaultClient, staticToken, logr.Discard())
	cs, err := client.postForConnectionString(context.Background(), "GetConnectionString", server.URL)
	if err != nil {
		t.Fatalf("postForConnectionString: %v", err)
	}
	if cs == "" {
		t.Error("expected non-empty connection string")
	}
}

func TestGetConnectionStringByIDParsesResourceID(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(AccessKeys{PrimaryConnectionString: "cs"})
	}))
	defer server.Close()

	client := &Client{http: http.DefaultClient, token: staticToken, logger: logr.Discard()}
	resourceID := "/subscriptions/sub1/resourceGroups/rg1/providers/Microsoft.ServiceBus/namespaces/ns1"

	overridden := overrideBaseURLForTest(t, server.URL)
	defer overridden()

	cs, err := client.GetConnectionStringByID(context.Background(), resourceID)
	if err != nil {
		t.Fatalf("GetConnectionStringByID: %v", err)
	}
	if cs != "cs" {
		t.Errorf("expected connection string 'cs', got %q", cs)
	}
	if gotPath == "" {
		t.Error("expected request to reach test server")
	}
}

func TestGetConnectionStringByIDRejectsMalformedID(t *testing.T) {
	client := NewClient(http.DefaultClient, staticToken, logr.Discard())
	if _, err := client.GetConnectionStringByID(context.Background(), "/not/a/valid/resource/id"); err == nil {
		t.Fatal("expected an error for a malformed resource id")
	}
}
