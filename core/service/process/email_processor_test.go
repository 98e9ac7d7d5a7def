package process

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/port/out"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/apperr"
)

func encodeRawURL(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

// fakeEmailRepo, fakeLinkRepo, and fakeSenderRepo are minimal in-memory
// stand-ins for the real pgx adapters, enough to exercise EmailProcessor's
// orchestration without a database.

type fakeEmailRepo struct {
	byMessageID map[string]*domain.Email
	nextID      int64
}

func newFakeEmailRepo() *fakeEmailRepo {
	return &fakeEmailRepo{byMessageID: make(map[string]*domain.Email)}
}

func (r *fakeEmailRepo) GetByID(ctx context.Context, id int64) (*domain.Email, error) {
	for _, e := range r.byMessageID {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, apperr.NotFound("email")
}

func (r *fakeEmailRepo) GetByMessageID(ctx context.Context, userID uuid.UUID, messageID string) (*domain.Email, error) {
	if e, ok := r.byMessageID[messageID]; ok {
		return e, nil
	}
	return nil, apperr.NotFound("email")
}

func (r *fakeEmailRepo) Create(ctx context.Context, email *domain.Email) error {
	if _, exists := r.byMessageID[email.MessageID]; exists {
		return apperr.IntegrityViolation("emails_user_id_message_id_key", nil)
	}
	r.nextID++
	email.ID = r.nextID
	email.CreatedAt = time.Now()
	r.byMessageID[email.MessageID] = email
	return nil
}

func (r *fakeEmailRepo) ListByDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Email, error) {
	return nil, nil
}

type fakeLinkRepo struct {
	byVideoID      map[string]*domain.Link
	missingMissing map[string]bool
	nextID         int64
}

func newFakeLinkRepo(missing ...string) *fakeLinkRepo {
	m := make(map[string]bool)
	for _, v := range missing {
		m[v] = true
	}
	return &fakeLinkRepo{byVideoID: make(map[string]*domain.Link), missingMissing: m}
}

func (r *fakeLinkRepo) GetByID(ctx context.Context, id int64) (*domain.Link, error) {
	return nil, apperr.NotFound("link")
}

func (r *fakeLinkRepo) CreateIgnoreDuplicate(ctx context.Context, link *domain.Link) (int64, bool, error) {
	if link.VideoID != "" {
		if _, exists := r.byVideoID[link.VideoID]; exists {
			return 0, false, nil
		}
	}
	r.nextID++
	link.ID = r.nextID
	link.ExtractedAt = time.Now()
	if link.VideoID != "" {
		r.byVideoID[link.VideoID] = link
	}
	return link.ID, true, nil
}

func (r *fakeLinkRepo) ExistsForVideoID(ctx context.Context, userID uuid.UUID, videoID string) (bool, error) {
	_, ok := r.byVideoID[videoID]
	return ok, nil
}

func (r *fakeLinkRepo) ListByEmailID(ctx context.Context, emailID int64) ([]*domain.Link, error) {
	return nil, nil
}

func (r *fakeLinkRepo) ListByDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Link, error) {
	return nil, nil
}

func (r *fakeLinkRepo) ListMissingMetadata(ctx context.Context, userID uuid.UUID, videoIDs []string) ([]string, error) {
	var missing []string
	for _, v := range videoIDs {
		if r.missingMissing[v] {
			missing = append(missing, v)
		}
	}
	return missing, nil
}

type fakeSenderRepo struct {
	contributions map[string]int
}

func newFakeSenderRepo() *fakeSenderRepo {
	return &fakeSenderRepo{contributions: make(map[string]int)}
}

func (r *fakeSenderRepo) GetByUserAndSender(ctx context.Context, userID uuid.UUID, sender string) (*domain.SenderStats, error) {
	return nil, apperr.NotFound("sender stats")
}

func (r *fakeSenderRepo) UpsertContribution(ctx context.Context, userID uuid.UUID, sender string, receivedAt time.Time) error {
	r.contributions[sender]++
	return nil
}

type fakeUnitOfWork struct {
	emails  domain.EmailRepository
	links   domain.LinkRepository
	senders domain.SenderStatsRepository
}

func (u *fakeUnitOfWork) Emails() domain.EmailRepository         { return u.emails }
func (u *fakeUnitOfWork) Links() domain.LinkRepository           { return u.links }
func (u *fakeUnitOfWork) Senders() domain.SenderStatsRepository { return u.senders }

func (u *fakeUnitOfWork) RunInTx(ctx context.Context, fn func(tx out.EmailProcessorTx) error) error {
	return fn(u)
}

var _ out.EmailProcessorTx = (*fakeUnitOfWork)(nil)
var _ out.EmailProcessorUnitOfWork = (*fakeUnitOfWork)(nil)

type fakeInbox struct {
	messages map[string]*out.InboxMessage
	threads  map[string]*out.InboxThread
}

func (f *fakeInbox) GetProfile(ctx context.Context) (*out.InboxProfile, error) {
	return &out.InboxProfile{}, nil
}

func (f *fakeInbox) ListMessages(ctx context.Context, query out.InboxListQuery) (*out.InboxMessagePage, error) {
	return &out.InboxMessagePage{}, nil
}

func (f *fakeInbox) ListHistorySince(ctx context.Context, cursor, pageToken string) (*out.InboxHistoryPage, error) {
	return &out.InboxHistoryPage{}, nil
}

func (f *fakeInbox) GetMessage(ctx context.Context, messageID string) (*out.InboxMessage, error) {
	if msg, ok := f.messages[messageID]; ok {
		return msg, nil
	}
	return nil, apperr.NotFound("message")
}

func (f *fakeInbox) ListThread(ctx context.Context, threadID string) (*out.InboxThread, error) {
	if thread, ok := f.threads[threadID]; ok {
		return thread, nil
	}
	return &out.InboxThread{ThreadID: threadID, MessageIDs: []string{threadID}}, nil
}

var _ out.InboxProvider = (*fakeInbox)(nil)

type fakeJobProducer struct {
	enrichCalls []domain.EnrichPayload
}

func (f *fakeJobProducer) EnqueueEmailProcess(ctx context.Context, key string, payload domain.EmailProcessPayload) error {
	return nil
}

func (f *fakeJobProducer) EnqueueEnrich(ctx context.Context, key string, payload domain.EnrichPayload) error {
	f.enrichCalls = append(f.enrichCalls, payload)
	return nil
}

func (f *fakeJobProducer) EnqueueRankCompute(ctx context.Context, key string, payload domain.RankComputePayload) error {
	return nil
}

var _ out.JobProducer = (*fakeJobProducer)(nil)

func TestEmailProcessor_ProcessMessage(t *testing.T) {
	userID := uuid.New()
	messageID := "msg-1"
	body := "Great video: https://www.youtube.com/watch?v=dQw4w9WgXcQ"

	inbox := &fakeInbox{
		messages: map[string]*out.InboxMessage{
			messageID: {
				MessageID: messageID,
				ThreadID:  "thread-1",
				FromEmail: "creator@youtube.com",
				Subject:   "New upload",
				Date:      time.Now(),
				Snippet:   "Great video",
				Parts: []out.InboxMessagePart{
					{MimeType: "text/plain", BodyDataBase64: encodeRawURL(body)},
				},
			},
		},
		threads: map[string]*out.InboxThread{
			"thread-1": {ThreadID: "thread-1", MessageIDs: []string{messageID, "msg-0"}},
		},
	}

	emails := newFakeEmailRepo()
	links := newFakeLinkRepo("dQw4w9WgXcQ")
	senders := newFakeSenderRepo()
	uow := &fakeUnitOfWork{emails: emails, links: links, senders: senders}
	jobs := &fakeJobProducer{}

	processor := NewEmailProcessor(emails, links, inbox, uow, jobs, nil)

	if err := processor.ProcessMessage(context.Background(), domain.EmailProcessPayload{UserID: userID, MessageID: messageID}); err != nil {
		t.Fatalf("ProcessMessage returned error: %v", err)
	}

	stored, err := emails.GetByMessageID(context.Background(), userID, messageID)
	if err != nil {
		t.Fatalf("expected email to be stored: %v", err)
	}
	if stored.ThreadReplyCount != 1 {
		t.Errorf("ThreadReplyCount = %d, want 1 (2 messages - 1)", stored.ThreadReplyCount)
	}

	if len(links.byVideoID) != 1 {
		t.Fatalf("expected 1 link stored, got %d", len(links.byVideoID))
	}
	if senders.contributions["creator@youtube.com"] != 1 {
		t.Errorf("expected 1 sender contribution, got %d", senders.contributions["creator@youtube.com"])
	}
	if len(jobs.enrichCalls) != 1 {
		t.Fatalf("expected 1 enrich job, got %d", len(jobs.enrichCalls))
	}
	if jobs.enrichCalls[0].VideoIDs[0] != "dQw4w9WgXcQ" {
		t.Errorf("enrich payload video id = %q, want dQw4w9WgXcQ", jobs.enrichCalls[0].VideoIDs[0])
	}

	// Reprocessing the same message is a no-op: no new enrich job.
	jobs.enrichCalls = nil
	if err := processor.ProcessMessage(context.Background(), domain.EmailProcessPayload{UserID: userID, MessageID: messageID}); err != nil {
		t.Fatalf("reprocessing returned error: %v", err)
	}
	if len(jobs.enrichCalls) != 0 {
		t.Errorf("expected no enrich jobs on reprocessing, got %d", len(jobs.enrichCalls))
	}
}
