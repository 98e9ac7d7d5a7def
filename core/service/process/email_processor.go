// Package process implements the Email Processor: given (user,
// message-id), it produces the persistent Email row, extracts and
// canonicalizes every link, updates sender stats, and fans out
// enrichment jobs for videos not yet in the metadata store (spec.md §4.2).
package process

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/port/out"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/service/canonicalize"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/apperr"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/logger"
)

// snippetMaxLen matches the 200-char preview cap (spec.md §3).
const snippetMaxLen = 200

// EmailProcessor runs one (user, message-id) job to completion.
type EmailProcessor struct {
	emails domain.EmailRepository
	links  domain.LinkRepository
	inbox  out.InboxProvider
	uow    out.EmailProcessorUnitOfWork
	jobs   out.JobProducer
	logger *logger.Logger
}

// NewEmailProcessor wires the repositories and ports one processing pass
// needs. emails and links are pool-scoped, used only for the idempotency
// pre-check and the post-commit missing-metadata lookup; the transactional
// writes themselves go through uow.
func NewEmailProcessor(
	emails domain.EmailRepository,
	links domain.LinkRepository,
	inbox out.InboxProvider,
	uow out.EmailProcessorUnitOfWork,
	jobs out.JobProducer,
	log *logger.Logger,
) *EmailProcessor {
	if log == nil {
		log = logger.Default()
	}
	return &EmailProcessor{emails: emails, links: links, inbox: inbox, uow: uow, jobs: jobs, logger: log}
}

// ProcessMessage is the handler invoked for every Email-Process job.
func (p *EmailProcessor) ProcessMessage(ctx context.Context, payload domain.EmailProcessPayload) error {
	log := p.logger.WithField("user_id", payload.UserID.String()).WithField("message_id", payload.MessageID)

	// Idempotency: a row already existing for this (user, message-id)
	// means an earlier attempt already completed (spec.md §4.2).
	existing, err := p.emails.GetByMessageID(ctx, payload.UserID, payload.MessageID)
	if err != nil && apperr.Code(err) != apperr.CodeNotFound {
		return fmt.Errorf("check existing email: %w", err)
	}
	if existing != nil {
		log.Debug("email already processed, skipping")
		return nil
	}

	msg, err := p.inbox.GetMessage(ctx, payload.MessageID)
	if err != nil {
		return fmt.Errorf("fetch message: %w", err)
	}

	threadReplyCount := 0
	if msg.ThreadID != "" {
		thread, err := p.inbox.ListThread(ctx, msg.ThreadID)
		if err != nil {
			log.WithError(err).Warn("failed to fetch thread, defaulting reply count to 0")
		} else if len(thread.MessageIDs) > 0 {
			threadReplyCount = len(thread.MessageIDs) - 1
		}
	}

	text := decodeMessageText(msg.Parts)
	extracted := canonicalize.ExtractLinks(text)

	var fromName *string
	if msg.FromName != "" {
		name := msg.FromName
		fromName = &name
	}

	email := &domain.Email{
		UserID:           payload.UserID,
		MessageID:        msg.MessageID,
		ThreadID:         msg.ThreadID,
		FromEmail:        msg.FromEmail,
		FromName:         fromName,
		Subject:          msg.Subject,
		ReceivedAt:       msg.Date,
		Snippet:          truncateSnippet(msg.Snippet, snippetMaxLen),
		Labels:           msg.Labels,
		ThreadReplyCount: threadReplyCount,
	}

	var insertedVideoIDs []string

	txErr := p.uow.RunInTx(ctx, func(tx out.EmailProcessorTx) error {
		if err := tx.Emails().Create(ctx, email); err != nil {
			if apperr.Code(err) == apperr.CodeIntegrityViolation {
				// Another processor already completed this message between
				// our pre-check and this insert; nothing left to do.
				return nil
			}
			return fmt.Errorf("insert email: %w", err)
		}

		for _, link := range extracted {
			domainLink := &domain.Link{
				UserID:       payload.UserID,
				EmailID:      email.ID,
				Type:         link.Type,
				CanonicalURL: link.CanonicalURL,
				VideoID:      link.VideoID,
				PlaylistID:   link.PlaylistID,
			}
			_, inserted, err := tx.Links().CreateIgnoreDuplicate(ctx, domainLink)
			if err != nil {
				return fmt.Errorf("insert link %s: %w", link.CanonicalURL, err)
			}
			if inserted && link.VideoID != "" {
				insertedVideoIDs = append(insertedVideoIDs, link.VideoID)
			}
		}

		if err := tx.Senders().UpsertContribution(ctx, payload.UserID, email.FromEmail, email.ReceivedAt); err != nil {
			return fmt.Errorf("upsert sender stats: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return txErr
	}

	if len(insertedVideoIDs) == 0 {
		return nil
	}
	return p.enqueueMissingMetadata(ctx, payload.UserID, insertedVideoIDs, log)
}

// enqueueMissingMetadata schedules one Enrich job per inserted link whose
// video id has no VideoMetadata row yet (spec.md §4.2 Persistence).
func (p *EmailProcessor) enqueueMissingMetadata(ctx context.Context, userID uuid.UUID, videoIDs []string, log *logger.Logger) error {
	missing, err := p.links.ListMissingMetadata(ctx, userID, videoIDs)
	if err != nil {
		return fmt.Errorf("list missing metadata: %w", err)
	}
	for _, videoID := range missing {
		key := "enrich:" + videoID
		payload := domain.EnrichPayload{UserID: userID, VideoIDs: []string{videoID}}
		if err := p.jobs.EnqueueEnrich(ctx, key, payload); err != nil {
			return fmt.Errorf("enqueue enrich for %s: %w", videoID, err)
		}
	}
	if len(missing) > 0 {
		log.WithField("video_count", len(missing)).Info("enqueued enrich jobs for missing metadata")
	}
	return nil
}
