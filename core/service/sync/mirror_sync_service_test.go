package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"mirror_server/core/domain"
	"mirror_server/core/port/out"
	"mirror_server/pkg/apperr"
)

// =============================================================================
// In-memory fakes
// =============================================================================

type fakeAccountRepo struct {
	accounts map[string]*domain.Account
	cursors  []domain.SyncCursor
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, accountID string) (*domain.Account, error) {
	return r.accounts[accountID], nil
}

func (r *fakeAccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	for _, a := range r.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) SaveCursor(ctx context.Context, accountID string, cursor domain.SyncCursor, syncedAt time.Time) error {
	r.cursors = append(r.cursors, cursor)
	if a, ok := r.accounts[accountID]; ok {
		a.Cursor = cursor
		a.LastSyncedAt = syncedAt
	}
	return nil
}

type fakeThreadRepo struct {
	threads map[string]*domain.Thread // accountID+"/"+externalID
	nextID  int
	upserts int
}

func newFakeThreadRepo() *fakeThreadRepo {
	return &fakeThreadRepo{threads: make(map[string]*domain.Thread)}
}

func (r *fakeThreadRepo) UpsertByExternalID(ctx context.Context, thread *domain.Thread) (string, error) {
	r.upserts++
	key := thread.AccountID + "/" + thread.ExternalID
	if existing, ok := r.threads[key]; ok {
		id := existing.ID
		summary := existing.Summary
		copied := *thread
		copied.ID = id
		copied.Summary = summary
		r.threads[key] = &copied
		return id, nil
	}
	r.nextID++
	copied := *thread
	copied.ID = fmt.Sprintf("thread-%d", r.nextID)
	r.threads[key] = &copied
	return copied.ID, nil
}

func (r *fakeThreadRepo) GetByExternalID(ctx context.Context, accountID, externalID string) (*domain.Thread, error) {
	return r.threads[accountID+"/"+externalID], nil
}

func (r *fakeThreadRepo) ListByAccount(ctx context.Context, accountID string, query out.ThreadQuery) ([]*domain.Thread, error) {
	var result []*domain.Thread
	for _, th := range r.threads {
		if th.AccountID == accountID {
			result = append(result, th)
		}
	}
	return result, nil
}

func (r *fakeThreadRepo) CountByAccount(ctx context.Context, accountID string) (int64, error) {
	list, _ := r.ListByAccount(ctx, accountID, out.ThreadQuery{})
	return int64(len(list)), nil
}

type fakeMessageRepo struct {
	messages map[string]*domain.Message // accountID+"/"+externalID
	upserts  int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: make(map[string]*domain.Message)}
}

func (r *fakeMessageRepo) UpsertByExternalID(ctx context.Context, message *domain.Message) (string, error) {
	r.upserts++
	key := message.AccountID + "/" + message.ExternalID
	copied := *message
	if existing, ok := r.messages[key]; ok {
		copied.ID = existing.ID
	} else {
		copied.ID = "msg-" + message.ExternalID
	}
	r.messages[key] = &copied
	return copied.ID, nil
}

func (r *fakeMessageRepo) ListByThread(ctx context.Context, accountID, threadRef string) ([]*domain.Message, error) {
	var result []*domain.Message
	for _, m := range r.messages {
		if m.AccountID == accountID && m.ThreadRef == threadRef {
			result = append(result, m)
		}
	}
	return result, nil
}

type fakeCache struct {
	data    map[string]string
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]string)}
}

func (c *fakeCache) Get(ctx context.Context, key string) (string, error) { return c.data[key], nil }
func (c *fakeCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.data[key] = value
	return nil
}
func (c *fakeCache) Delete(ctx context.Context, key string) error {
	delete(c.data, key)
	c.deleted = append(c.deleted, key)
	return nil
}
func (c *fakeCache) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := c.data[key]
	return ok, nil
}
func (c *fakeCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	return false, nil
}
func (c *fakeCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}
func (c *fakeCache) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, nil
}
func (c *fakeCache) ReleaseLock(ctx context.Context, key string) error { return nil }

type fakeProvider struct {
	pages      map[string]*out.ThreadListing
	threads    map[string]*out.ProviderThread
	threadErrs map[string]error
	listTokens []string
}

func (p *fakeProvider) GetProviderType() string { return "fake" }

func (p *fakeProvider) ListThreads(ctx context.Context, token *oauth2.Token, opts *out.ThreadListOptions) (*out.ThreadListing, error) {
	p.listTokens = append(p.listTokens, opts.PageToken)
	listing, ok := p.pages[opts.PageToken]
	if !ok {
		return &out.ThreadListing{}, nil
	}
	return listing, nil
}

func (p *fakeProvider) GetThread(ctx context.Context, token *oauth2.Token, externalID string) (*out.ProviderThread, error) {
	if err, ok := p.threadErrs[externalID]; ok {
		return nil, err
	}
	th, ok := p.threads[externalID]
	if !ok {
		return nil, out.NewProviderError("fake", out.ProviderErrNotFound, "thread not found", nil, false)
	}
	return th, nil
}

type fakePublisher struct {
	events []*out.ThreadSyncedEvent
}

func (p *fakePublisher) PublishThreadSynced(ctx context.Context, event *out.ThreadSyncedEvent) error {
	p.events = append(p.events, event)
	return nil
}

// =============================================================================
// Fixtures
// =============================================================================

const testAccountID = "acc-1"

func testAccount() *domain.Account {
	return &domain.Account{
		ID:           testAccountID,
		Email:        "user@example.com",
		AccessToken:  "access",
		RefreshToken: "refresh",
	}
}

func providerThread(id string, dates ...time.Time) *out.ProviderThread {
	th := &out.ProviderThread{
		ExternalID: id,
		HistoryID:  "h-" + id,
		Snippet:    "listing snippet " + id,
	}
	for i, d := range dates {
		th.Messages = append(th.Messages, out.ProviderMessage{
			ExternalID:       fmt.Sprintf("%s-m%d", id, i+1),
			ExternalThreadID: id,
			From:             fmt.Sprintf("Sender%d@Example.com", i+1),
			To:               []string{"user@example.com"},
			Subject:          "Subject " + id,
			Snippet:          fmt.Sprintf("snippet %s-m%d", id, i+1),
			InternalDate:     d,
		})
	}
	return th
}

type fixture struct {
	svc       *Service
	accounts  *fakeAccountRepo
	threads   *fakeThreadRepo
	messages  *fakeMessageRepo
	cache     *fakeCache
	provider  *fakeProvider
	publisher *fakePublisher
}

func newFixture(provider *fakeProvider) *fixture {
	f := &fixture{
		accounts:  &fakeAccountRepo{accounts: map[string]*domain.Account{testAccountID: testAccount()}},
		threads:   newFakeThreadRepo(),
		messages:  newFakeMessageRepo(),
		cache:     newFakeCache(),
		provider:  provider,
		publisher: &fakePublisher{},
	}
	f.svc = NewService(f.accounts, f.threads, f.messages, f.provider, f.cache, f.publisher, 50, 10*time.Second)
	return f
}

// =============================================================================
// RunPass
// =============================================================================

func TestRunPass_TwoPages(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// T1은 양쪽 페이지에 모두 등장한다 (업스트림 페이징은 중복을 허용)
	provider := &fakeProvider{
		pages: map[string]*out.ThreadListing{
			"": {
				Refs:          []out.ThreadRef{{ExternalID: "T1"}, {ExternalID: "T2"}},
				NextPageToken: "page2",
				HasMore:       true,
			},
			"page2": {
				Refs: []out.ThreadRef{{ExternalID: "T1"}, {ExternalID: "T3"}},
			},
		},
		threads: map[string]*out.ProviderThread{
			"T1": providerThread("T1", base, base.Add(time.Hour)),
			"T2": providerThread("T2", base.Add(2*time.Hour)),
			"T3": providerThread("T3", base.Add(3*time.Hour)),
		},
	}
	f := newFixture(provider)
	ctx := context.Background()

	// Page 1
	result, err := f.svc.RunPass(ctx, testAccountID, "")
	if err != nil {
		t.Fatalf("RunPass() page 1 error = %v", err)
	}
	if result.SyncedThreads != 2 || result.SyncedMessages != 3 {
		t.Errorf("page 1 = %d threads / %d messages, want 2 / 3", result.SyncedThreads, result.SyncedMessages)
	}
	if !result.HasMore || result.NextPageToken != "page2" {
		t.Errorf("page 1 hasMore = %v token = %q, want true / page2", result.HasMore, result.NextPageToken)
	}

	// Page 2 resumes from the persisted cursor
	result, err = f.svc.RunPass(ctx, testAccountID, "")
	if err != nil {
		t.Fatalf("RunPass() page 2 error = %v", err)
	}
	if result.HasMore {
		t.Error("page 2 should be the final page")
	}
	if got := f.provider.listTokens; len(got) != 2 || got[1] != "page2" {
		t.Errorf("list tokens = %v, want second call with page2", got)
	}

	// T1 재등장은 새 스레드를 만들지 않는다
	if count, _ := f.threads.CountByAccount(ctx, testAccountID); count != 3 {
		t.Errorf("thread count = %d, want 3", count)
	}
	if len(f.messages.messages) != 4 {
		t.Errorf("message count = %d, want 4", len(f.messages.messages))
	}
}

func TestRunPass_Idempotent(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		pages: map[string]*out.ThreadListing{
			"": {Refs: []out.ThreadRef{{ExternalID: "T1"}}},
		},
		threads: map[string]*out.ProviderThread{
			"T1": providerThread("T1", base, base.Add(time.Hour)),
		},
	}
	f := newFixture(provider)
	ctx := context.Background()

	first, err := f.svc.RunPass(ctx, testAccountID, "")
	if err != nil {
		t.Fatalf("RunPass() first error = %v", err)
	}
	second, err := f.svc.RunPass(ctx, testAccountID, "")
	if err != nil {
		t.Fatalf("RunPass() second error = %v", err)
	}

	if first.SyncedThreads != second.SyncedThreads || first.SyncedMessages != second.SyncedMessages {
		t.Errorf("repeat pass results differ: %+v vs %+v", first, second)
	}
	if count, _ := f.threads.CountByAccount(ctx, testAccountID); count != 1 {
		t.Errorf("thread count = %d, want 1 after repeated pass", count)
	}
	if len(f.messages.messages) != 2 {
		t.Errorf("message count = %d, want 2 after repeated pass", len(f.messages.messages))
	}
}

func TestRunPass_ExplicitTokenOverridesCursor(t *testing.T) {
	provider := &fakeProvider{
		pages: map[string]*out.ThreadListing{
			"explicit": {},
		},
	}
	f := newFixture(provider)
	f.accounts.accounts[testAccountID].Cursor = domain.CursorMidSync("persisted")

	if _, err := f.svc.RunPass(context.Background(), testAccountID, "explicit"); err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}
	if got := f.provider.listTokens; len(got) != 1 || got[0] != "explicit" {
		t.Errorf("list tokens = %v, want [explicit]", got)
	}
}

func TestRunPass_CursorStateMachine(t *testing.T) {
	provider := &fakeProvider{
		pages: map[string]*out.ThreadListing{
			"": {NextPageToken: "page2", HasMore: true},
		},
	}
	f := newFixture(provider)
	ctx := context.Background()

	if _, err := f.svc.RunPass(ctx, testAccountID, ""); err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}
	if len(f.accounts.cursors) != 1 {
		t.Fatalf("cursor saves = %d, want 1", len(f.accounts.cursors))
	}
	if token, ok := f.accounts.cursors[0].Token(); !ok || token != "page2" {
		t.Errorf("saved cursor token = %q ok=%v, want page2", token, ok)
	}

	// 마지막 페이지는 caught-up 커서를 남긴다
	if _, err := f.svc.RunPass(ctx, testAccountID, ""); err != nil {
		t.Fatalf("RunPass() final page error = %v", err)
	}
	final := f.accounts.cursors[len(f.accounts.cursors)-1]
	if !final.Complete() {
		t.Error("final cursor should report complete")
	}

	status, err := f.svc.GetStatus(ctx, testAccountID)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if !status.SyncComplete || status.HasMore {
		t.Errorf("status = %+v, want sync complete", status)
	}
}

func TestRunPass_SkipsEmptyListingIDs(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		pages: map[string]*out.ThreadListing{
			"": {Refs: []out.ThreadRef{{ExternalID: ""}, {ExternalID: "T1"}}},
		},
		threads: map[string]*out.ProviderThread{
			"T1": providerThread("T1", base),
		},
	}
	f := newFixture(provider)

	result, err := f.svc.RunPass(context.Background(), testAccountID, "")
	if err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}
	if result.SyncedThreads != 1 {
		t.Errorf("synced threads = %d, want 1 (empty id skipped)", result.SyncedThreads)
	}
}

func TestRunPass_ThreadFetchFailureAbortsPass(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		pages: map[string]*out.ThreadListing{
			"": {
				Refs:          []out.ThreadRef{{ExternalID: "T1"}, {ExternalID: "T2"}},
				NextPageToken: "page2",
				HasMore:       true,
			},
		},
		threads: map[string]*out.ProviderThread{
			"T1": providerThread("T1", base),
		},
		threadErrs: map[string]error{
			"T2": out.NewProviderError("fake", out.ProviderErrServer, "boom", nil, true),
		},
	}
	f := newFixture(provider)

	_, err := f.svc.RunPass(context.Background(), testAccountID, "")
	if !apperr.IsCode(err, apperr.CodeUpstreamUnavailable) {
		t.Fatalf("RunPass() error = %v, want %s", err, apperr.CodeUpstreamUnavailable)
	}
	// 실패한 패스는 커서를 전진시키지 않는다
	if len(f.accounts.cursors) != 0 {
		t.Errorf("cursor saves = %d, want 0 on failed pass", len(f.accounts.cursors))
	}
}

func TestRunPass_AuthExpired(t *testing.T) {
	provider := &fakeProvider{
		pages: map[string]*out.ThreadListing{
			"": {Refs: []out.ThreadRef{{ExternalID: "T1"}}},
		},
		threadErrs: map[string]error{
			"T1": out.NewProviderError("fake", out.ProviderErrTokenExpired, "token expired", nil, false),
		},
	}
	f := newFixture(provider)

	_, err := f.svc.RunPass(context.Background(), testAccountID, "")
	if !apperr.IsCode(err, apperr.CodeUpstreamAuthExpired) {
		t.Fatalf("RunPass() error = %v, want %s", err, apperr.CodeUpstreamAuthExpired)
	}
}

func TestRunPass_NoCredential(t *testing.T) {
	f := newFixture(&fakeProvider{})
	f.accounts.accounts[testAccountID].RefreshToken = ""

	_, err := f.svc.RunPass(context.Background(), testAccountID, "")
	if !apperr.IsCode(err, apperr.CodeNoCredential) {
		t.Fatalf("RunPass() error = %v, want %s", err, apperr.CodeNoCredential)
	}
}

func TestRunPass_UnknownAccount(t *testing.T) {
	f := newFixture(&fakeProvider{})

	_, err := f.svc.RunPass(context.Background(), "missing", "")
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Fatalf("RunPass() error = %v, want %s", err, apperr.CodeNotFound)
	}
}

func TestRunPass_PublishesThreadSyncedEvents(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		pages: map[string]*out.ThreadListing{
			"": {Refs: []out.ThreadRef{{ExternalID: "T1"}}},
		},
		threads: map[string]*out.ProviderThread{
			"T1": providerThread("T1", base, base.Add(time.Hour)),
		},
	}
	f := newFixture(provider)

	if _, err := f.svc.RunPass(context.Background(), testAccountID, ""); err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}
	if len(f.publisher.events) != 1 {
		t.Fatalf("published events = %d, want 1", len(f.publisher.events))
	}
	event := f.publisher.events[0]
	if event.ExternalID != "T1" || event.MessageCount != 2 {
		t.Errorf("event = %+v, want T1 with 2 messages", event)
	}
}

// =============================================================================
// Aggregate folding
// =============================================================================

func TestFoldThread_Aggregates(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pt := &out.ProviderThread{
		ExternalID: "T1",
		HistoryID:  "h1",
		Snippet:    "listing snippet",
		Messages: []out.ProviderMessage{
			{
				ExternalID:   "m1",
				From:         "Alice@Example.com",
				To:           []string{"bob@example.com"},
				Subject:      "",
				Snippet:      "first",
				InternalDate: base,
			},
			{
				ExternalID:   "m2",
				From:         "bob@example.com",
				To:           []string{"ALICE@example.com", "carol@example.com"},
				Subject:      "Re: hello",
				Snippet:      "latest",
				InternalDate: base.Add(time.Hour),
			},
		},
	}

	svc := &Service{}
	thread := svc.foldThread(testAccountID, pt)

	if thread.Subject != "Re: hello" {
		t.Errorf("subject = %q, want first non-empty subject", thread.Subject)
	}
	if thread.Snippet != "latest" {
		t.Errorf("snippet = %q, want latest message snippet", thread.Snippet)
	}
	if !thread.LastMessageDate.Equal(base.Add(time.Hour)) {
		t.Errorf("lastMessageDate = %v, want max date", thread.LastMessageDate)
	}
	if thread.MessageCount != 2 {
		t.Errorf("messageCount = %d, want 2", thread.MessageCount)
	}

	want := []string{"alice@example.com", "bob@example.com", "carol@example.com"}
	if len(thread.Participants) != len(want) {
		t.Fatalf("participants = %v, want %v", thread.Participants, want)
	}
	for i, p := range want {
		if thread.Participants[i] != p {
			t.Errorf("participants[%d] = %q, want %q", i, thread.Participants[i], p)
		}
	}
}

func TestFoldThread_NoMessages(t *testing.T) {
	svc := &Service{}
	thread := svc.foldThread(testAccountID, &out.ProviderThread{
		ExternalID: "T1",
		Snippet:    "listing snippet",
	})

	if thread.Snippet != "listing snippet" {
		t.Errorf("snippet = %q, want listing fallback", thread.Snippet)
	}
	if thread.MessageCount != 0 || thread.Subject != "" {
		t.Errorf("empty thread aggregates = %+v", thread)
	}
}

// ID 없는 메시지는 저장되지 않으므로 집계에도 들어가면 안 된다.
// message_count가 실제 저장된 메시지 수와 어긋나면 안 되기 때문.
func TestFoldThread_SkipsMessagesWithoutID(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pt := &out.ProviderThread{
		ExternalID: "T1",
		Messages: []out.ProviderMessage{
			{
				ExternalID:   "m1",
				From:         "alice@example.com",
				To:           []string{"bob@example.com"},
				Subject:      "hello",
				Snippet:      "kept",
				InternalDate: base,
			},
			{
				// 업스트림이 간혹 빈 ID 레코드를 돌려준다
				ExternalID:   "",
				From:         "mallory@example.com",
				To:           []string{"trent@example.com"},
				Subject:      "should not count",
				Snippet:      "dropped",
				InternalDate: base.Add(time.Hour),
			},
		},
	}

	svc := &Service{}
	thread := svc.foldThread(testAccountID, pt)

	if thread.MessageCount != 1 {
		t.Errorf("messageCount = %d, want 1", thread.MessageCount)
	}
	if thread.Snippet != "kept" {
		t.Errorf("snippet = %q, want snippet from persisted message", thread.Snippet)
	}
	if !thread.LastMessageDate.Equal(base) {
		t.Errorf("lastMessageDate = %v, want date of persisted message", thread.LastMessageDate)
	}
	for _, p := range thread.Participants {
		if p == "mallory@example.com" || p == "trent@example.com" {
			t.Errorf("participants include address from skipped message: %v", thread.Participants)
		}
	}
}
