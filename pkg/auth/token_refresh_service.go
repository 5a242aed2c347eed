package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"

	"github.com/dawidpereira/quetty/pkg/quettyerr"
)

// checkInterval is how often the refresh service wakes up to check every
// registered fingerprint for whether it needs a refresh.
const checkInterval = 2 * time.Minute

// maxRefreshAttempts bounds the retry loop; delays are 1s, 2s, 4s.
const maxRefreshAttempts = 3

// RefreshTarget is one fingerprint the refresh service keeps warm, paired
// with the provider that can mint a fresh token for it.
type RefreshTarget struct {
	Fingerprint string
	Provider    Provider
}

// TokenRefreshService runs a cooperative periodic loop that refreshes cached
// tokens before they expire, with bounded exponential retry and an optional
// failure callback invoked exactly once per exhausted fingerprint per tick.
type TokenRefreshService struct {
	cache       *TokenCache
	targets     []RefreshTarget
	logger      logr.Logger
	onFailure   func(fingerprint string, err error)
	failureOnce sync.Map // fingerprint -> *sync.Once, reset each tick
}

// NewTokenRefreshService builds a service over cache, refreshing targets on
// each tick. onFailure may be nil.
func NewTokenRefreshService(cache *TokenCache, targets []RefreshTarget, logger logr.Logger, onFailure func(string, error)) *TokenRefreshService {
	return &TokenRefreshService{
		cache:     cache,
		targets:   targets,
		logger:    logger,
		onFailure: onFailure,
	}
}

// Run blocks, ticking every checkInterval until ctx is cancelled. Shutdown
// is cooperative: the current tick completes, then the loop exits. The
// first tick fires after the first full interval has elapsed, not
// immediately on entry.
func (s *TokenRefreshService) Run(ctx context.Context) {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAndRefreshTokens(ctx)
		}
	}
}

func (s *TokenRefreshService) checkAndRefreshTokens(ctx context.Context) {
	s.failureOnce.Range(func(key, _ any) bool {
		s.failureOnce.Delete(key)
		return true
	})
	for _, target := range s.targets {
		if ctx.Err() != nil {
			return
		}
		if !s.cache.NeedsRefresh(target.Fingerprint) {
			continue
		}
		s.refreshIfNeeded(ctx, target)
	}
}

func (s *TokenRefreshService) refreshIfNeeded(ctx context.Context, target RefreshTarget) {
	token, err := s.refreshWithRetry(ctx, target.Provider, maxRefreshAttempts)
	if err != nil {
		s.cache.Invalidate(target.Fingerprint)
		s.logger.Error(err, "token refresh exhausted retries, invalidating cache entry", "fingerprint", target.Fingerprint)
		if s.onFailure != nil {
			once, _ := s.failureOnce.LoadOrStore(target.Fingerprint, &sync.Once{})
			once.(*sync.Once).Do(func() {
				s.onFailure(target.Fingerprint, err)
			})
		}
		return
	}
	s.failureOnce.Delete(target.Fingerprint)
	s.cache.Set(target.Fingerprint, token)
}

// refreshWithRetry attempts provider.Refresh up to maxAttempts times with
// delays of 1s, 2s, 4s, translating broker errors into the narrowed
// refresh-error taxonomy.
func (s *TokenRefreshService) refreshWithRetry(ctx context.Context, provider Provider, maxAttempts int) (CachedToken, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = 4 * time.Second

	var lastErr error
	var result CachedToken
	attempts := 0

	operation := func() error {
		attempts++
		token, err := provider.Refresh(ctx)
		if err != nil {
			lastErr = translateRefreshError(err)
			return lastErr
		}
		result = token
		return nil
	}

	retryErr := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxAttempts-1)), ctx))
	if retryErr != nil {
		return CachedToken{}, &quettyerr.MaxRetriesExceeded{Attempts: attempts, Last: lastErr}
	}
	return result, nil
}

// translateRefreshError maps the broker's error taxonomy to the refresh
// service's narrower one, expressed with quettyerr types:
//
//	authentication-failed -> invalid refresh token (*AuthenticationFailed, unchanged)
//	timeout containing "rate" -> rate limited (*OperationTimeout with RateLimited set)
//	timeout (other) -> service unavailable (*OperationTimeout, unchanged)
//	connection-failed -> network error (*ConnectionFailed, unchanged)
//	anything else -> internal (*InternalError)
func translateRefreshError(err error) error {
	switch e := err.(type) {
	case *quettyerr.AuthenticationFailed:
		return e
	case *quettyerr.OperationTimeout:
		if e.RateLimited || strings.Contains(strings.ToLower(e.Error()), "rate") {
			return &quettyerr.OperationTimeout{Operation: e.Operation, RateLimited: true}
		}
		return e
	case *quettyerr.ConnectionFailed:
		return e
	default:
		return &quettyerr.InternalError{Debug: err.Error()}
	}
}
