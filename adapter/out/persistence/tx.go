package persistence

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/port/out"
	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/pkg/apperr"
)

// pgxQuerier is the subset of *pgxpool.Pool and pgx.Tx the adapters need,
// letting the same adapter run against a pooled connection or an open
// transaction without duplicating its query logic.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ pgxQuerier = (*pgxpool.Pool)(nil)
	_ pgxQuerier = (pgx.Tx)(nil)
)

// emailProcessorTx implements out.EmailProcessorTx, binding the three
// repositories the Email Processor writes to to one open transaction:
// insert Email, insert Links, upsert SenderStats (spec.md §4.2 Persistence).
type emailProcessorTx struct {
	emails  *EmailAdapter
	links   *LinkAdapter
	senders *SenderStatsAdapter
}

func (t *emailProcessorTx) Emails() domain.EmailRepository         { return t.emails }
func (t *emailProcessorTx) Links() domain.LinkRepository           { return t.links }
func (t *emailProcessorTx) Senders() domain.SenderStatsRepository { return t.senders }

var _ out.EmailProcessorTx = (*emailProcessorTx)(nil)

// EmailProcessorUnitOfWork opens the one transaction the Email Processor
// requires per message and commits it only once every write succeeds; any
// returned error rolls the whole pass back so at-least-once redelivery can
// safely retry it (spec.md §4.2 Failure).
type EmailProcessorUnitOfWork struct {
	pool *pgxpool.Pool
}

func NewEmailProcessorUnitOfWork(pool *pgxpool.Pool) *EmailProcessorUnitOfWork {
	return &EmailProcessorUnitOfWork{pool: pool}
}

// RunInTx executes fn against repositories bound to one open transaction.
func (u *EmailProcessorUnitOfWork) RunInTx(ctx context.Context, fn func(tx out.EmailProcessorTx) error) error {
	tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperr.DatabaseError("begin email processor transaction", err)
	}
	defer tx.Rollback(ctx)

	scoped := &emailProcessorTx{
		emails:  &EmailAdapter{db: tx},
		links:   &LinkAdapter{db: tx},
		senders: &SenderStatsAdapter{db: tx},
	}

	if err := fn(scoped); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.DatabaseError("commit email processor transaction", err)
	}
	return nil
}

var _ out.EmailProcessorUnitOfWork = (*EmailProcessorUnitOfWork)(nil)
