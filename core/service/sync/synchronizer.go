// Package sync implements the Inbox Synchronizer: it advances a user's
// change cursor to the current head of their inbox, enqueueing one
// Email-Process job per newly observed message (spec.md §4.1).
package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/port/out"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/logger"
)

// InitialSyncFilter is the coarse pre-filter applied when a user has no
// change cursor yet (spec.md §4.1 step 2).
const InitialSyncFilter = "from:youtube.com OR from:youtubenotifications@youtube.com"

// InitialSyncMaxResults bounds the first sync pass for a new user.
const InitialSyncMaxResults = 200

// maxTransientRetries caps the exponential backoff retries for one page
// of a pagination pass before the whole pass is abandoned and re-run on
// the synchronizer's next scheduled invocation (spec.md §4.1 Failure).
const maxTransientRetries = 5

// retryBaseDelay is the base for BackoffDelay during transient retries.
const retryBaseDelay = 2 * time.Second

// Synchronizer drives one user's inbox sync pass.
type Synchronizer struct {
	users  domain.UserRepository
	inbox  out.InboxProvider
	jobs   out.JobProducer
	logger *logger.Logger
}

// NewSynchronizer wires the repositories and ports the sync pass needs.
func NewSynchronizer(users domain.UserRepository, inbox out.InboxProvider, jobs out.JobProducer, log *logger.Logger) *Synchronizer {
	if log == nil {
		log = logger.Default()
	}
	return &Synchronizer{users: users, inbox: inbox, jobs: jobs, logger: log}
}

// SyncUser runs one full pass for user, implementing spec.md §4.1's
// four-step algorithm. It never partially advances the cursor: either the
// whole pagination pass commits a new cursor, or the cursor is left
// untouched for the next scheduled run to retry.
func (s *Synchronizer) SyncUser(ctx context.Context, user *domain.User) error {
	log := s.logger.WithField("user_id", user.ID.String())

	if user.NeedsReauthorization {
		log.Debug("skipping sync: user needs reauthorization")
		return nil
	}

	if user.HasCursor() {
		if err := s.syncDelta(ctx, user, log); err != nil {
			if errors.Is(err, out.ErrFullSyncRequired) {
				log.Warn("cursor expired upstream, falling back to bounded initial sync")
				user.ChangeCursor = ""
				return s.syncInitial(ctx, user, log)
			}
			return s.handleSyncError(ctx, user, err, log)
		}
		return nil
	}

	if err := s.syncInitial(ctx, user, log); err != nil {
		return s.handleSyncError(ctx, user, err, log)
	}
	return nil
}

// handleSyncError maps an unambiguous credential revocation to
// MarkNeedsReauthorization and stops (spec.md §4.1 step 1); any other
// error is returned unchanged so the caller can reschedule the user.
func (s *Synchronizer) handleSyncError(ctx context.Context, user *domain.User, err error, log *logger.Logger) error {
	var revoked *out.RevocationError
	if errors.As(err, &revoked) {
		log.WithError(err).Warn("credential revoked, marking user for reauthorization")
		if markErr := s.users.MarkNeedsReauthorization(ctx, user.ID); markErr != nil {
			return fmt.Errorf("mark needs reauthorization: %w", markErr)
		}
		return nil
	}
	return err
}

// syncDelta requests every change since the user's stored cursor,
// paginating until exhausted, and only then persists the new cursor
// (spec.md §4.1 steps 2-4).
func (s *Synchronizer) syncDelta(ctx context.Context, user *domain.User, log *logger.Logger) error {
	cursor := user.ChangeCursor
	pageToken := ""
	var newCursor string
	messageCount := 0

	for {
		page, err := s.fetchHistoryPageWithRetry(ctx, cursor, pageToken, log)
		if err != nil {
			return err
		}

		if err := s.enqueueMessages(ctx, user.ID, page.MessageIDs, log); err != nil {
			return err
		}
		messageCount += len(page.MessageIDs)
		newCursor = page.NewCursor

		if !page.HasMore {
			break
		}
		pageToken = page.NextPageToken
	}

	if newCursor == "" || newCursor == cursor {
		return nil
	}
	if err := s.users.UpdateCursor(ctx, user.ID, newCursor); err != nil {
		return fmt.Errorf("persist cursor: %w", err)
	}
	log.WithField("message_count", messageCount).Info("delta sync committed")
	return nil
}

// syncInitial performs the bounded initial sync for a user with no
// cursor yet, seeding the cursor from the account's current profile
// afterward so the next pass can run a delta sync (spec.md §4.1).
func (s *Synchronizer) syncInitial(ctx context.Context, user *domain.User, log *logger.Logger) error {
	profile, err := s.getProfileWithRetry(ctx, log)
	if err != nil {
		return err
	}

	pageToken := ""
	messageCount := 0
	remaining := InitialSyncMaxResults

	for remaining > 0 {
		query := out.InboxListQuery{
			Query:      InitialSyncFilter,
			MaxResults: remaining,
			PageToken:  pageToken,
		}
		page, err := s.listMessagesWithRetry(ctx, query, log)
		if err != nil {
			return err
		}

		if err := s.enqueueMessages(ctx, user.ID, page.MessageIDs, log); err != nil {
			return err
		}
		messageCount += len(page.MessageIDs)
		remaining -= len(page.MessageIDs)

		if page.NextPageToken == "" || len(page.MessageIDs) == 0 {
			break
		}
		pageToken = page.NextPageToken
	}

	if err := s.users.UpdateCursor(ctx, user.ID, profile.ChangeCursor); err != nil {
		return fmt.Errorf("persist cursor: %w", err)
	}
	log.WithField("message_count", messageCount).Info("initial sync committed")
	return nil
}

// enqueueMessages schedules one Email-Process job per message id, keyed
// by (user, message-id) so the queue's own dedup window absorbs repeat
// enqueues across retried pages (spec.md §4.1 step 3).
func (s *Synchronizer) enqueueMessages(ctx context.Context, userID uuid.UUID, messageIDs []string, log *logger.Logger) error {
	for _, messageID := range messageIDs {
		key := idempotencyKey(userID, messageID)
		payload := domain.EmailProcessPayload{UserID: userID, MessageID: messageID}
		if err := s.jobs.EnqueueEmailProcess(ctx, key, payload); err != nil {
			return fmt.Errorf("enqueue email-process for message %s: %w", messageID, err)
		}
	}
	return nil
}

func idempotencyKey(userID uuid.UUID, messageID string) string {
	return userID.String() + ":" + messageID
}

// fetchHistoryPageWithRetry retries transient failures (network, 5xx,
// 429) with exponential backoff; a RevocationError or ErrFullSyncRequired
// is returned immediately without retrying (spec.md §4.1 Failure).
func (s *Synchronizer) fetchHistoryPageWithRetry(ctx context.Context, cursor, pageToken string, log *logger.Logger) (*out.InboxHistoryPage, error) {
	var lastErr error
	for attempt := 0; attempt <= maxTransientRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		page, err := s.inbox.ListHistorySince(ctx, cursor, pageToken)
		if err == nil {
			return page, nil
		}
		if isTerminal(err) {
			return nil, err
		}
		lastErr = err
		log.WithError(err).Warn("transient failure listing history, retrying")
	}
	return nil, fmt.Errorf("list history exhausted retries: %w", lastErr)
}

func (s *Synchronizer) listMessagesWithRetry(ctx context.Context, query out.InboxListQuery, log *logger.Logger) (*out.InboxMessagePage, error) {
	var lastErr error
	for attempt := 0; attempt <= maxTransientRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		page, err := s.inbox.ListMessages(ctx, query)
		if err == nil {
			return page, nil
		}
		if isTerminal(err) {
			return nil, err
		}
		lastErr = err
		log.WithError(err).Warn("transient failure listing messages, retrying")
	}
	return nil, fmt.Errorf("list messages exhausted retries: %w", lastErr)
}

func (s *Synchronizer) getProfileWithRetry(ctx context.Context, log *logger.Logger) (*out.InboxProfile, error) {
	var lastErr error
	for attempt := 0; attempt <= maxTransientRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		profile, err := s.inbox.GetProfile(ctx)
		if err == nil {
			return profile, nil
		}
		if isTerminal(err) {
			return nil, err
		}
		lastErr = err
		log.WithError(err).Warn("transient failure fetching profile, retrying")
	}
	return nil, fmt.Errorf("get profile exhausted retries: %w", lastErr)
}

// isTerminal reports whether err should stop retries immediately rather
// than backing off: credential revocation or an expired cursor are not
// transient (spec.md §4.1 Failure distinguishes these from network/5xx/429).
func isTerminal(err error) bool {
	var revoked *out.RevocationError
	if errors.As(err, &revoked) {
		return true
	}
	return errors.Is(err, out.ErrFullSyncRequired)
}

func sleepBackoff(ctx context.Context, attempt int) error {
	delay := domain.BackoffDelay(retryBaseDelay, attempt-1)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SyncActiveUsers runs one pass over every eligible user, logging and
// continuing past individual failures so one user's revoked credential
// or transient outage does not block the rest of the cohort.
func (s *Synchronizer) SyncActiveUsers(ctx context.Context) error {
	users, err := s.users.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active users: %w", err)
	}

	for _, user := range users {
		if err := s.SyncUser(ctx, user); err != nil {
			s.logger.WithField("user_id", user.ID.String()).WithError(err).Error("sync pass failed")
		}
	}
	return nil
}
