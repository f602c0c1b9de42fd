// Package provider implements mail provider adapters.
package provider

import (
	"context"
	"errors"
	"time"

	"mirror_server/core/port/out"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
)

// =============================================================================
// Circuit Breaker Wrapper
// =============================================================================
//
// 업스트림 API가 연속으로 죽어 있을 때 호출 폭주를 끊는다. 열린 동안의
// 호출은 재시도 가능한 프로바이더 에러로 보고된다.

// BreakerProvider wraps a MailboxProvider with a circuit breaker.
type BreakerProvider struct {
	inner out.MailboxProvider
	cb    *gobreaker.CircuitBreaker
	zlog  zerolog.Logger
}

// NewBreakerProvider creates a circuit-breaker wrapped provider.
func NewBreakerProvider(inner out.MailboxProvider, zlog zerolog.Logger) *BreakerProvider {
	zlog = zlog.With().Str("breaker", inner.GetProviderType()).Logger()
	cbSettings := gobreaker.Settings{
		Name:        inner.GetProviderType() + "-api",
		MaxRequests: 3,                // Half-open 상태에서 허용할 요청 수
		Interval:    60 * time.Second, // Closed 상태에서 카운터 리셋 간격
		Timeout:     30 * time.Second, // Open 상태 유지 시간 (이후 Half-open)
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// 연속 5회 실패 또는 60% 이상 실패율 (최소 10회 요청)
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures >= 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zlog.Warn().
				Str("name", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// 자격 증명/입력 문제는 업스트림 장애가 아니므로 회로에 반영하지 않음
			var provErr *out.ProviderError
			if errors.As(err, &provErr) {
				switch provErr.Code {
				case out.ProviderErrAuth, out.ProviderErrTokenExpired,
					out.ProviderErrNotFound, out.ProviderErrInvalidInput:
					return true
				}
			}
			if errors.Is(err, context.Canceled) {
				return true
			}
			return false
		},
	}

	return &BreakerProvider{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(cbSettings),
		zlog:  zlog,
	}
}

// GetProviderType returns the wrapped provider's name.
func (p *BreakerProvider) GetProviderType() string {
	return p.inner.GetProviderType()
}

// ListThreads delegates through the breaker.
func (p *BreakerProvider) ListThreads(ctx context.Context, token *oauth2.Token, opts *out.ThreadListOptions) (*out.ThreadListing, error) {
	result, err := p.cb.Execute(func() (interface{}, error) {
		return p.inner.ListThreads(ctx, token, opts)
	})
	if err != nil {
		return nil, p.translateBreakerError(err)
	}
	return result.(*out.ThreadListing), nil
}

// GetThread delegates through the breaker.
func (p *BreakerProvider) GetThread(ctx context.Context, token *oauth2.Token, externalID string) (*out.ProviderThread, error) {
	result, err := p.cb.Execute(func() (interface{}, error) {
		return p.inner.GetThread(ctx, token, externalID)
	})
	if err != nil {
		return nil, p.translateBreakerError(err)
	}
	return result.(*out.ProviderThread), nil
}

func (p *BreakerProvider) translateBreakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return out.NewProviderError(p.inner.GetProviderType(), out.ProviderErrServer,
			"circuit breaker open", err, true)
	}
	return err
}

// Ensure BreakerProvider implements out.MailboxProvider
var _ out.MailboxProvider = (*BreakerProvider)(nil)
