// Package gmail adapts the Gmail API to the pipeline's InboxProvider port.
package gmail

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/sony/gobreaker"

	out "github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/port/out"
)

// Config holds the OAuth2 app registration used to build per-user clients.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// InboxAdapter implements out.InboxProvider for Gmail. The OAuth2 transport
// breaker (sony/gobreaker) fast-fails Gmail API calls the same way the
// teacher's mail-provider adapter does; this is a single-process breaker
// because only this process's Gmail traffic trips it (spec.md §4.1, §7).
type InboxAdapter struct {
	oauthConfig *oauth2.Config
	cb          *gobreaker.CircuitBreaker
}

// NewInboxAdapter builds an adapter for the given OAuth2 app registration.
func NewInboxAdapter(cfg Config) *InboxAdapter {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{gmail.GmailReadonlyScope},
		Endpoint:     google.Endpoint,
	}

	cbSettings := gobreaker.Settings{
		Name:        "gmail-inbox",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &InboxAdapter{
		oauthConfig: oauthConfig,
		cb:          gobreaker.NewCircuitBreaker(cbSettings),
	}
}

func (a *InboxAdapter) service(ctx context.Context) (*gmail.Service, error) {
	token, ok := tokenFromContext(ctx)
	if !ok {
		return nil, errors.New("gmail: no oauth token attached to context")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	return gmail.NewService(ctx, option.WithTokenSource(a.oauthConfig.TokenSource(ctx, token)))
}

// nonCircuitError marks an error that should not count against the breaker
// (client-side errors: bad request, auth, not found).
type nonCircuitError struct{ err error }

func (e *nonCircuitError) Error() string { return e.err.Error() }
func (e *nonCircuitError) Unwrap() error { return e.err }

func (a *InboxAdapter) execute(fn func() error) error {
	_, err := a.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) {
				switch apiErr.Code {
				case 400, 401, 403, 404:
					return nil, &nonCircuitError{err: err}
				}
			}
			return nil, err
		}
		return nil, nil
	})

	var nce *nonCircuitError
	if errors.As(err, &nce) {
		return nce.err
	}
	return err
}

func (a *InboxAdapter) wrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &out.RevocationError{Err: fmt.Errorf("%s: %w", operation, err)}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 401 {
		return &out.RevocationError{Err: fmt.Errorf("%s: %w", operation, err)}
	}

	return fmt.Errorf("gmail %s: %w", operation, err)
}

func (a *InboxAdapter) GetProfile(ctx context.Context) (*out.InboxProfile, error) {
	svc, err := a.service(ctx)
	if err != nil {
		return nil, err
	}

	var profile *gmail.Profile
	cbErr := a.execute(func() error {
		var apiErr error
		profile, apiErr = svc.Users.GetProfile("me").Context(ctx).Do()
		return apiErr
	})
	if cbErr != nil {
		return nil, a.wrapError(cbErr, "get profile")
	}

	return &out.InboxProfile{
		Email:        profile.EmailAddress,
		ChangeCursor: strconv.FormatUint(profile.HistoryId, 10),
	}, nil
}

func (a *InboxAdapter) ListMessages(ctx context.Context, query out.InboxListQuery) (*out.InboxMessagePage, error) {
	svc, err := a.service(ctx)
	if err != nil {
		return nil, err
	}

	maxResults := int64(100)
	if query.MaxResults > 0 {
		maxResults = int64(query.MaxResults)
	}

	req := svc.Users.Messages.List("me").MaxResults(maxResults)
	if query.Query != "" {
		req = req.Q(query.Query)
	}
	if query.PageToken != "" {
		req = req.PageToken(query.PageToken)
	}

	var resp *gmail.ListMessagesResponse
	cbErr := a.execute(func() error {
		var apiErr error
		resp, apiErr = req.Context(ctx).Do()
		return apiErr
	})
	if cbErr != nil {
		return nil, a.wrapError(cbErr, "list messages")
	}

	ids := make([]string, len(resp.Messages))
	for i, m := range resp.Messages {
		ids[i] = m.Id
	}

	return &out.InboxMessagePage{MessageIDs: ids, NextPageToken: resp.NextPageToken}, nil
}

func (a *InboxAdapter) ListHistorySince(ctx context.Context, cursor string, pageToken string) (*out.InboxHistoryPage, error) {
	svc, err := a.service(ctx)
	if err != nil {
		return nil, err
	}

	historyID, err := strconv.ParseUint(cursor, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("gmail: invalid cursor %q: %w", cursor, err)
	}

	req := svc.Users.History.List("me").StartHistoryId(historyID)
	if pageToken != "" {
		req = req.PageToken(pageToken)
	}

	var resp *gmail.ListHistoryResponse
	cbErr := a.execute(func() error {
		var apiErr error
		resp, apiErr = req.Context(ctx).Do()
		return apiErr
	})
	if cbErr != nil {
		var apiErr *googleapi.Error
		if errors.As(cbErr, &apiErr) && apiErr.Code == 404 {
			return nil, out.ErrFullSyncRequired
		}
		return nil, a.wrapError(cbErr, "list history")
	}

	seen := make(map[string]bool)
	var ids []string
	for _, h := range resp.History {
		for _, added := range h.MessagesAdded {
			if !seen[added.Message.Id] {
				seen[added.Message.Id] = true
				ids = append(ids, added.Message.Id)
			}
		}
	}

	return &out.InboxHistoryPage{
		MessageIDs:    ids,
		NextPageToken: resp.NextPageToken,
		NewCursor:     strconv.FormatUint(resp.HistoryId, 10),
		HasMore:       resp.NextPageToken != "",
	}, nil
}

func (a *InboxAdapter) GetMessage(ctx context.Context, messageID string) (*out.InboxMessage, error) {
	svc, err := a.service(ctx)
	if err != nil {
		return nil, err
	}

	var msg *gmail.Message
	cbErr := a.execute(func() error {
		var apiErr error
		msg, apiErr = svc.Users.Messages.Get("me", messageID).Format("full").Context(ctx).Do()
		return apiErr
	})
	if cbErr != nil {
		return nil, a.wrapError(cbErr, "get message")
	}

	return convertMessage(msg), nil
}

func (a *InboxAdapter) ListThread(ctx context.Context, threadID string) (*out.InboxThread, error) {
	svc, err := a.service(ctx)
	if err != nil {
		return nil, err
	}

	var thread *gmail.Thread
	cbErr := a.execute(func() error {
		var apiErr error
		thread, apiErr = svc.Users.Threads.Get("me", threadID).Format("minimal").Context(ctx).Do()
		return apiErr
	})
	if cbErr != nil {
		return nil, a.wrapError(cbErr, "list thread")
	}

	ids := make([]string, len(thread.Messages))
	for i, m := range thread.Messages {
		ids[i] = m.Id
	}

	return &out.InboxThread{ThreadID: thread.Id, MessageIDs: ids}, nil
}

func convertMessage(msg *gmail.Message) *out.InboxMessage {
	result := &out.InboxMessage{
		MessageID: msg.Id,
		ThreadID:  msg.ThreadId,
		Labels:    msg.LabelIds,
		Snippet:   msg.Snippet,
	}

	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "Subject":
				result.Subject = h.Value
			case "From":
				if addr, err := mail.ParseAddress(h.Value); err == nil {
					result.FromEmail = addr.Address
					result.FromName = addr.Name
				} else {
					result.FromEmail = h.Value
				}
			case "Date":
				if t, err := mail.ParseDate(h.Value); err == nil {
					result.Date = t
				}
			}
		}
		result.Parts = []out.InboxMessagePart{convertPart(msg.Payload)}
	}

	if result.Date.IsZero() {
		result.Date = time.UnixMilli(msg.InternalDate)
	}

	return result
}

func convertPart(part *gmail.MessagePart) out.InboxMessagePart {
	p := out.InboxMessagePart{MimeType: part.MimeType}
	if part.Body != nil {
		p.BodyDataBase64 = part.Body.Data
	}
	for _, child := range part.Parts {
		p.Parts = append(p.Parts, convertPart(child))
	}
	return p
}

var _ out.InboxProvider = (*InboxAdapter)(nil)
