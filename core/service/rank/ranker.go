package rank

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/apperr"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/logger"
)

// Ranker runs one Rank-Compute job to completion: read the link's joined
// state, extract features, score, classify, explain, tag, and persist one
// Ranking row (spec.md §4.5).
type Ranker struct {
	links      domain.LinkRepository
	emails     domain.EmailRepository
	metadata   domain.VideoMetadataRepository
	senders    domain.SenderStatsRepository
	users      domain.UserRepository
	rankings   domain.RankingRepository
	weights    Weights
	thresholds Thresholds
	halfLife   float64
	logger     *logger.Logger
}

// NewRanker wires the repositories and scoring configuration one ranking
// pass needs.
func NewRanker(
	links domain.LinkRepository,
	emails domain.EmailRepository,
	metadata domain.VideoMetadataRepository,
	senders domain.SenderStatsRepository,
	users domain.UserRepository,
	rankings domain.RankingRepository,
	weights Weights,
	thresholds Thresholds,
	freshnessHalfLifeDays float64,
	log *logger.Logger,
) *Ranker {
	if log == nil {
		log = logger.Default()
	}
	return &Ranker{
		links:      links,
		emails:     emails,
		metadata:   metadata,
		senders:    senders,
		users:      users,
		rankings:   rankings,
		weights:    weights,
		thresholds: thresholds,
		halfLife:   freshnessHalfLifeDays,
		logger:     log,
	}
}

// RankLink is the handler invoked for every Rank-Compute job.
func (r *Ranker) RankLink(ctx context.Context, payload domain.RankComputePayload) error {
	log := r.logger.WithField("user_id", payload.UserID.String()).WithField("link_id", payload.LinkID)

	link, err := r.links.GetByID(ctx, payload.LinkID)
	if err != nil {
		return fmt.Errorf("fetch link: %w", err)
	}
	if link.Type != domain.LinkTypeVideo {
		log.Debug("skipping ranking for non-video link")
		return nil
	}

	email, err := r.emails.GetByID(ctx, link.EmailID)
	if err != nil {
		return fmt.Errorf("fetch email: %w", err)
	}

	// A not-yet-enriched video has no metadata row; returning the error
	// lets the Rank-Compute queue's backoff retry the job later. The Enrich
	// stage does not enqueue Rank-Compute jobs, so nothing orders this job
	// after the video's enrichment (spec.md §4.2, §4.5).
	meta, err := r.metadata.GetByVideoID(ctx, link.VideoID)
	if err != nil {
		return fmt.Errorf("fetch video metadata: %w", err)
	}

	stats, err := r.senders.GetByUserAndSender(ctx, payload.UserID, email.FromEmail)
	if err != nil {
		if apperr.Code(err) != apperr.CodeNotFound {
			return fmt.Errorf("fetch sender stats: %w", err)
		}
		stats = nil
	}

	user, err := r.users.GetByID(ctx, payload.UserID)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}

	now := time.Now()
	rankingCtx := RankingContext{
		ThreadReplyCount:      email.ThreadReplyCount,
		EmailReceivedAt:       email.ReceivedAt,
		VideoPublishedAt:      meta.PublishedAt,
		VideoTitle:            meta.Title,
		VideoDescription:      strings.Join(meta.DescriptionKeywords, " "),
		LearningGoals:         user.Preferences.LearningGoals,
		SenderStats:           stats,
		FreshnessHalfLifeDays: r.halfLife,
	}

	features := ExtractFeatures(rankingCtx, now)
	score := FinalScore(features, r.weights)
	classification := Classify(score, r.thresholds)

	ranking := &domain.Ranking{
		UserID:         payload.UserID,
		LinkID:         payload.LinkID,
		RankedAt:       now,
		Features:       features,
		FinalScore:     score,
		Classification: classification,
		Explanation:    Explain(features, classification, score),
		TopicTags:      TopicTags(meta.Title),
		ChannelID:      meta.ChannelID,
	}

	if err := r.rankings.Upsert(ctx, ranking); err != nil {
		return fmt.Errorf("upsert ranking: %w", err)
	}

	log.WithField("classification", string(classification)).WithField("score", score).Info("ranked link")
	return nil
}
