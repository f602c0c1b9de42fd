// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// =============================================================================
// Mailbox Provider Port (Gmail)
// =============================================================================

// MailboxProvider defines the outbound port for the upstream mailbox API.
// 구현체: Gmail 어댑터 (+ circuit breaker 래퍼)
type MailboxProvider interface {
	// 기본 정보
	GetProviderType() string // "gmail"

	// 스레드 목록 한 페이지 조회 (연속 토큰 기반)
	ListThreads(ctx context.Context, token *oauth2.Token, opts *ThreadListOptions) (*ThreadListing, error)

	// 스레드 전체 내용 조회 (모든 메시지 + MIME 트리)
	GetThread(ctx context.Context, token *oauth2.Token, externalID string) (*ProviderThread, error)
}

// =============================================================================
// Provider Types
// =============================================================================

// ThreadListOptions represents listing options for one page.
type ThreadListOptions struct {
	PageSize  int
	PageToken string // 이어받을 위치, 비어 있으면 최신 페이지부터
}

// ThreadRef is one entry of a thread listing page.
type ThreadRef struct {
	ExternalID string
	Snippet    string
}

// ThreadListing represents one page of the upstream thread listing.
type ThreadListing struct {
	Refs          []ThreadRef
	NextPageToken string
	HasMore       bool
}

// ProviderThread represents a fully fetched thread.
type ProviderThread struct {
	ExternalID string
	HistoryID  string
	Snippet    string
	Messages   []ProviderMessage // 업스트림 순서 그대로
}

// ProviderMessage represents one message of a fetched thread.
type ProviderMessage struct {
	ExternalID       string
	ExternalThreadID string

	From    string
	To      []string
	Subject string
	Snippet string

	InternalDate time.Time
	LabelIDs     []string

	// MIME 트리 - 본문 추출은 코어에서 수행
	Body *MailPart
}

// MailPart is one node of a message's MIME tree. Data is base64url
// encoded as delivered by the upstream API.
type MailPart struct {
	MimeType string
	Data     string
	Parts    []*MailPart
}

// =============================================================================
// Provider Error
// =============================================================================

// ProviderErrorCode represents error codes.
type ProviderErrorCode string

const (
	ProviderErrAuth         ProviderErrorCode = "auth_error"
	ProviderErrTokenExpired ProviderErrorCode = "token_expired"
	ProviderErrRateLimit    ProviderErrorCode = "rate_limit"
	ProviderErrNotFound     ProviderErrorCode = "not_found"
	ProviderErrNetwork      ProviderErrorCode = "network_error"
	ProviderErrServer       ProviderErrorCode = "server_error"
	ProviderErrInvalidInput ProviderErrorCode = "invalid_input"
)

// ProviderError represents a provider error.
type ProviderError struct {
	Provider  string
	Code      ProviderErrorCode
	Message   string
	Err       error
	Retryable bool
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new provider error.
func NewProviderError(provider string, code ProviderErrorCode, message string, err error, retryable bool) *ProviderError {
	return &ProviderError{
		Provider:  provider,
		Code:      code,
		Message:   message,
		Err:       err,
		Retryable: retryable,
	}
}
