package rank

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/apperr"
)

type fakeLinks struct {
	links map[int64]*domain.Link
}

func (f *fakeLinks) GetByID(ctx context.Context, id int64) (*domain.Link, error) {
	if l, ok := f.links[id]; ok {
		return l, nil
	}
	return nil, apperr.NotFound("link")
}
func (f *fakeLinks) CreateIgnoreDuplicate(ctx context.Context, link *domain.Link) (int64, bool, error) {
	return 0, false, nil
}
func (f *fakeLinks) ExistsForVideoID(ctx context.Context, userID uuid.UUID, videoID string) (bool, error) {
	return false, nil
}
func (f *fakeLinks) ListByEmailID(ctx context.Context, emailID int64) ([]*domain.Link, error) {
	return nil, nil
}
func (f *fakeLinks) ListByDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Link, error) {
	return nil, nil
}
func (f *fakeLinks) ListMissingMetadata(ctx context.Context, userID uuid.UUID, videoIDs []string) ([]string, error) {
	return nil, nil
}

type fakeEmails struct {
	emails map[int64]*domain.Email
}

func (f *fakeEmails) GetByID(ctx context.Context, id int64) (*domain.Email, error) {
	if e, ok := f.emails[id]; ok {
		return e, nil
	}
	return nil, apperr.NotFound("email")
}
func (f *fakeEmails) GetByMessageID(ctx context.Context, userID uuid.UUID, messageID string) (*domain.Email, error) {
	return nil, apperr.NotFound("email")
}
func (f *fakeEmails) Create(ctx context.Context, email *domain.Email) error { return nil }
func (f *fakeEmails) ListByDateRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Email, error) {
	return nil, nil
}

type fakeMetadata struct {
	byVideoID map[string]*domain.VideoMetadata
}

func (f *fakeMetadata) GetByVideoID(ctx context.Context, videoID string) (*domain.VideoMetadata, error) {
	if m, ok := f.byVideoID[videoID]; ok {
		return m, nil
	}
	return nil, apperr.NotFound("video metadata")
}
func (f *fakeMetadata) GetByVideoIDs(ctx context.Context, videoIDs []string) ([]*domain.VideoMetadata, error) {
	return nil, nil
}
func (f *fakeMetadata) Upsert(ctx context.Context, metadata *domain.VideoMetadata) error { return nil }

type fakeSenders struct {
	byUserAndSender map[string]*domain.SenderStats
}

func (f *fakeSenders) GetByUserAndSender(ctx context.Context, userID uuid.UUID, sender string) (*domain.SenderStats, error) {
	if s, ok := f.byUserAndSender[sender]; ok {
		return s, nil
	}
	return nil, apperr.NotFound("sender stats")
}
func (f *fakeSenders) UpsertContribution(ctx context.Context, userID uuid.UUID, sender string, receivedAt time.Time) error {
	return nil
}

type fakeUsers struct {
	users map[uuid.UUID]*domain.User
}

func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("user")
}
func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return nil, apperr.NotFound("user")
}
func (f *fakeUsers) Create(ctx context.Context, user *domain.User) error { return nil }
func (f *fakeUsers) Update(ctx context.Context, user *domain.User) error { return nil }
func (f *fakeUsers) UpdateCursor(ctx context.Context, id uuid.UUID, cursor string) error {
	return nil
}
func (f *fakeUsers) MarkNeedsReauthorization(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeUsers) ListActive(ctx context.Context) ([]*domain.User, error)           { return nil, nil }

type fakeRankings struct {
	upserted []*domain.Ranking
}

func (f *fakeRankings) Upsert(ctx context.Context, ranking *domain.Ranking) error {
	f.upserted = append(f.upserted, ranking)
	return nil
}
func (f *fakeRankings) ListByUserInRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.Ranking, error) {
	return nil, nil
}
func (f *fakeRankings) TopKByScore(ctx context.Context, userID uuid.UUID, from, to time.Time, k int) ([]*domain.Ranking, error) {
	return nil, nil
}

func TestRanker_RankLink(t *testing.T) {
	userID := uuid.New()
	receivedAt := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	publishedAt := receivedAt.Add(-24 * time.Hour)

	links := &fakeLinks{links: map[int64]*domain.Link{
		1: {ID: 1, UserID: userID, EmailID: 1, Type: domain.LinkTypeVideo, VideoID: "v1"},
	}}
	emails := &fakeEmails{emails: map[int64]*domain.Email{
		1: {ID: 1, UserID: userID, FromEmail: "creator@learning.dev", ReceivedAt: receivedAt, ThreadReplyCount: 2},
	}}
	metadata := &fakeMetadata{byVideoID: map[string]*domain.VideoMetadata{
		"v1": {VideoID: "v1", Title: "Golang Tutorial for Beginners", ChannelID: "chan1", PublishedAt: publishedAt},
	}}
	senders := &fakeSenders{byUserAndSender: map[string]*domain.SenderStats{
		"creator@learning.dev": {EmailCount: 20, LastEmailAt: receivedAt, InContacts: true},
	}}
	users := &fakeUsers{users: map[uuid.UUID]*domain.User{
		userID: {ID: userID, Preferences: domain.Preferences{LearningGoals: []string{"golang"}}},
	}}
	rankings := &fakeRankings{}

	ranker := NewRanker(links, emails, metadata, senders, users, rankings, defaultWeights, defaultThresholds, 30, nil)

	err := ranker.RankLink(context.Background(), domain.RankComputePayload{UserID: userID, LinkID: 1})
	if err != nil {
		t.Fatalf("RankLink returned error: %v", err)
	}
	if len(rankings.upserted) != 1 {
		t.Fatalf("expected 1 ranking upserted, got %d", len(rankings.upserted))
	}

	r := rankings.upserted[0]
	if r.UserID != userID || r.LinkID != 1 {
		t.Errorf("ranking identity mismatch: %+v", r)
	}
	if r.ChannelID != "chan1" {
		t.Errorf("ChannelID = %q, want chan1", r.ChannelID)
	}
	if r.FinalScore <= 0 || r.FinalScore > 1 {
		t.Errorf("FinalScore = %v, want in (0,1]", r.FinalScore)
	}
	if r.Explanation == "" {
		t.Error("expected a non-empty explanation")
	}
}

func TestRanker_RankLink_SkipsNonVideoLink(t *testing.T) {
	userID := uuid.New()
	links := &fakeLinks{links: map[int64]*domain.Link{
		2: {ID: 2, UserID: userID, Type: domain.LinkTypePlaylist, PlaylistID: "PL1"},
	}}
	rankings := &fakeRankings{}
	ranker := NewRanker(links, &fakeEmails{}, &fakeMetadata{}, &fakeSenders{}, &fakeUsers{}, rankings, defaultWeights, defaultThresholds, 30, nil)

	if err := ranker.RankLink(context.Background(), domain.RankComputePayload{UserID: userID, LinkID: 2}); err != nil {
		t.Fatalf("RankLink returned error: %v", err)
	}
	if len(rankings.upserted) != 0 {
		t.Errorf("expected no ranking for a playlist link, got %d", len(rankings.upserted))
	}
}

func TestRanker_RankLink_MissingMetadataReturnsError(t *testing.T) {
	userID := uuid.New()
	links := &fakeLinks{links: map[int64]*domain.Link{
		3: {ID: 3, UserID: userID, EmailID: 1, Type: domain.LinkTypeVideo, VideoID: "not-enriched"},
	}}
	emails := &fakeEmails{emails: map[int64]*domain.Email{
		1: {ID: 1, UserID: userID, FromEmail: "x@y.com", ReceivedAt: time.Now()},
	}}
	ranker := NewRanker(links, emails, &fakeMetadata{byVideoID: map[string]*domain.VideoMetadata{}}, &fakeSenders{}, &fakeUsers{}, &fakeRankings{}, defaultWeights, defaultThresholds, 30, nil)

	err := ranker.RankLink(context.Background(), domain.RankComputePayload{UserID: userID, LinkID: 3})
	if err == nil {
		t.Fatal("expected an error when video metadata is not yet enriched")
	}
}
