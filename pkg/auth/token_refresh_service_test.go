package auth

import (
	"context"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/dawidpereira/quetty/pkg/quettyerr"
)

type flakyProvider struct {
	failTimes   int
	refreshCall int
	token       CachedToken
}

func (p *flakyProvider) Authenticate(ctx context.Context) (CachedToken, error) {
	return p.Refresh(ctx)
}

func (p *flakyProvider) Refresh(context.Context) (CachedToken, error) {
	p.refreshCall++
	if p.refreshCall <= p.failTimes {
		return CachedToken{}, &quettyerr.ConnectionFailed{Reason: "simulated failure"}
	}
	return p.token, nil
}

func (p *flakyProvider) AuthType() AuthType    { return AuthTypeClientCredentials }
func (p *flakyProvider) RequiresRefresh() bool { return true }

func TestRefreshWithRetrySuccess(t *testing.T) {
	provider := &flakyProvider{failTimes: 0, token: CachedToken{Token: "ok", ExpiresAt: time.Now().Add(time.Hour)}}
	svc := NewTokenRefreshService(NewTokenCache(), nil, logr.Discard(), nil)

	token, err := svc.refreshWithRetry(context.Background(), provider, maxRefreshAttempts)
	if err != nil {
		t.Fatalf("refreshWithRetry: %v", err)
	}
	if token.Token != "ok" {
		t.Errorf("expected token 'ok', got %q", token.Token)
	}
	if provider.refreshCall != 1 {
		t.Errorf("expected 1 refresh call, got %d", provider.refreshCall)
	}
}

// TestRefreshWithRetryFailure: Refresh returns ConnectionFailed on each of
// 3 attempts; the caller gets MaxRetriesExceeded reporting 3 attempts.
func TestRefreshWithRetryFailure(t *testing.T) {
	provider := &flakyProvider{failTimes: maxRefreshAttempts}
	svc := NewTokenRefreshService(NewTokenCache(), nil, logr.Discard(), nil)

	_, err := svc.refreshWithRetry(context.Background(), provider, maxRefreshAttempts)
	if err == nil {
		t.Fatal("expected MaxRetriesExceeded error")
	}
	maxErr, ok := err.(*quettyerr.MaxRetriesExceeded)
	if !ok {
		t.Fatalf("expected *quettyerr.MaxRetriesExceeded, got %T", err)
	}
	if maxErr.Attempts != maxRefreshAttempts {
		t.Errorf("expected %d attempts, got %d", maxRefreshAttempts, maxErr.Attempts)
	}
	if provider.refreshCall != maxRefreshAttempts {
		t.Errorf("expected %d refresh calls, got %d", maxRefreshAttempts, provider.refreshCall)
	}
}

func TestRefreshIfNeededInvalidatesCacheAndCallsFailureOnce(t *testing.T) {
	cache := NewTokenCache()
	cache.Set("service_bus", CachedToken{Token: "stale", ExpiresAt: time.Now().Add(time.Minute)})

	provider := &flakyProvider{failTimes: maxRefreshAttempts}
	failureCalls := 0
	svc := NewTokenRefreshService(cache, []RefreshTarget{{Fingerprint: "service_bus", Provider: provider}}, logr.Discard(), func(string, error) {
		failureCalls++
	})

	svc.refreshIfNeeded(context.Background(), svc.targets[0])

	if _, ok := cache.Get("service_bus"); ok {
		t.Error("expected cache entry to be invalidated after retry exhaustion")
	}
	if failureCalls != 1 {
		t.Errorf("expected failure callback invoked exactly once, got %d", failureCalls)
	}
}
