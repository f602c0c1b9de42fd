// Package gmail provides the Gmail API adapter.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"mirror_server/core/port/out"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const providerName = "gmail"

// Client implements out.MailboxProvider for Gmail.
type Client struct {
	config *oauth2.Config
}

// NewClient creates a new Gmail client.
func NewClient(clientID, clientSecret, redirectURL string) *Client {
	return &Client{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes: []string{
				gmail.GmailReadonlyScope,
			},
		},
	}
}

// GetProviderType returns the provider name.
func (c *Client) GetProviderType() string {
	return providerName
}

// service builds a per-call Gmail service. The oauth2 client refreshes
// the access token transparently when a refresh token is present.
func (c *Client) service(ctx context.Context, token *oauth2.Token) (*gmail.Service, error) {
	httpClient := c.config.Client(ctx, token)
	service, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return service, nil
}

// =============================================================================
// Listing
// =============================================================================

// ListThreads fetches one page of the thread listing.
func (c *Client) ListThreads(ctx context.Context, token *oauth2.Token, opts *out.ThreadListOptions) (*out.ThreadListing, error) {
	service, err := c.service(ctx, token)
	if err != nil {
		return nil, wrapError("create service", err)
	}

	req := service.Users.Threads.List("me")
	if opts != nil {
		if opts.PageSize > 0 {
			req = req.MaxResults(int64(opts.PageSize))
		}
		if opts.PageToken != "" {
			req = req.PageToken(opts.PageToken)
		}
	}

	resp, err := req.Context(ctx).Do()
	if err != nil {
		return nil, wrapError("list threads", err)
	}

	refs := make([]out.ThreadRef, 0, len(resp.Threads))
	for _, t := range resp.Threads {
		refs = append(refs, out.ThreadRef{
			ExternalID: t.Id,
			Snippet:    t.Snippet,
		})
	}

	return &out.ThreadListing{
		Refs:          refs,
		NextPageToken: resp.NextPageToken,
		HasMore:       resp.NextPageToken != "",
	}, nil
}

// =============================================================================
// Thread Fetch
// =============================================================================

// GetThread fetches a thread with full message content.
func (c *Client) GetThread(ctx context.Context, token *oauth2.Token, externalID string) (*out.ProviderThread, error) {
	service, err := c.service(ctx, token)
	if err != nil {
		return nil, wrapError("create service", err)
	}

	thread, err := service.Users.Threads.Get("me", externalID).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapError("get thread "+externalID, err)
	}

	result := &out.ProviderThread{
		ExternalID: thread.Id,
		HistoryID:  strconv.FormatUint(thread.HistoryId, 10),
		Snippet:    thread.Snippet,
		Messages:   make([]out.ProviderMessage, 0, len(thread.Messages)),
	}

	for _, msg := range thread.Messages {
		result.Messages = append(result.Messages, parseMessage(msg))
	}

	return result, nil
}

// =============================================================================
// Parsing Helpers
// =============================================================================

func parseMessage(msg *gmail.Message) out.ProviderMessage {
	pm := out.ProviderMessage{
		ExternalID:       msg.Id,
		ExternalThreadID: msg.ThreadId,
		Snippet:          msg.Snippet,
		InternalDate:     time.UnixMilli(msg.InternalDate).UTC(),
		LabelIDs:         msg.LabelIds,
	}

	if msg.Payload != nil {
		// 헤더 이름은 대소문자 구분 없이 비교
		for _, header := range msg.Payload.Headers {
			switch {
			case strings.EqualFold(header.Name, "From"):
				pm.From = header.Value
			case strings.EqualFold(header.Name, "To"):
				pm.To = parseAddresses(header.Value)
			case strings.EqualFold(header.Name, "Subject"):
				pm.Subject = header.Value
			}
		}

		pm.Body = convertPart(msg.Payload)
	}

	return pm
}

func parseAddresses(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	addrs := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			addrs = append(addrs, trimmed)
		}
	}
	return addrs
}

// convertPart maps the Gmail MIME tree onto the port's part tree.
// Data stays base64url encoded; decoding is the core's concern.
func convertPart(part *gmail.MessagePart) *out.MailPart {
	if part == nil {
		return nil
	}

	node := &out.MailPart{
		MimeType: part.MimeType,
	}
	if part.Body != nil {
		node.Data = part.Body.Data
	}
	for _, child := range part.Parts {
		if converted := convertPart(child); converted != nil {
			node.Parts = append(node.Parts, converted)
		}
	}

	return node
}

// =============================================================================
// Error Mapping
// =============================================================================

// wrapError translates Gmail API failures into provider errors.
func wrapError(operation string, err error) error {
	// 취소/타임아웃은 분류하지 않고 그대로 올림
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 401:
			return out.NewProviderError(providerName, out.ProviderErrTokenExpired,
				"credential rejected: "+operation, err, false)
		case apiErr.Code == 403:
			return out.NewProviderError(providerName, out.ProviderErrAuth,
				"access denied: "+operation, err, false)
		case apiErr.Code == 404:
			return out.NewProviderError(providerName, out.ProviderErrNotFound,
				"not found: "+operation, err, false)
		case apiErr.Code == 429:
			return out.NewProviderError(providerName, out.ProviderErrRateLimit,
				"rate limited: "+operation, err, true)
		case apiErr.Code >= 500:
			return out.NewProviderError(providerName, out.ProviderErrServer,
				"server error: "+operation, err, true)
		}
	}

	// oauth2 token refresh 실패도 여기로 떨어진다
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return out.NewProviderError(providerName, out.ProviderErrTokenExpired,
			"token refresh failed: "+operation, err, false)
	}

	return out.NewProviderError(providerName, out.ProviderErrNetwork,
		"network error: "+operation, err, true)
}

// Ensure Client implements out.MailboxProvider
var _ out.MailboxProvider = (*Client)(nil)
