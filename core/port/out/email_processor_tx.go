package out

import (
	"context"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
)

// EmailProcessorUnitOfWork runs the Email Processor's single transaction:
// insert Email, insert Links, upsert SenderStats all commit together or
// not at all (spec.md §4.2 Persistence, Failure).
type EmailProcessorUnitOfWork interface {
	RunInTx(ctx context.Context, fn func(tx EmailProcessorTx) error) error
}

// EmailProcessorTx exposes the three repositories scoped to one open
// transaction. Named accessors rather than embedding, since
// domain.EmailRepository and domain.LinkRepository both declare GetByID —
// embedding both would make that selector ambiguous.
type EmailProcessorTx interface {
	Emails() domain.EmailRepository
	Links() domain.LinkRepository
	Senders() domain.SenderStatsRepository
}
