// Package itf provides test fixtures for service and controller tests that
// run against in-memory repositories instead of postgres.
package itf

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iota-uz/docflow/pkg/composables"
)

// NoopTx satisfies pgx.Tx for code paths that only need a transaction marker
// in context. Any attempt to actually touch the database fails loudly.
type NoopTx struct{}

var errNoDatabase = errors.New("itf: no database behind NoopTx")

func (NoopTx) Begin(ctx context.Context) (pgx.Tx, error) { return NoopTx{}, nil }
func (NoopTx) Commit(ctx context.Context) error          { return nil }
func (NoopTx) Rollback(ctx context.Context) error        { return nil }

func (NoopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errNoDatabase
}

func (NoopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (NoopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }

func (NoopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errNoDatabase
}

func (NoopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errNoDatabase
}

func (NoopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errNoDatabase
}

func (NoopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return noRow{} }

func (NoopTx) Conn() *pgx.Conn { return nil }

type noRow struct{}

func (noRow) Scan(dest ...any) error { return errNoDatabase }

// Context builds a request-shaped context: tenant, actor and a transaction
// marker so tenant-transaction helpers run the callback directly.
func Context(tenantID uuid.UUID, actor composables.Actor) context.Context {
	ctx := composables.WithTenantID(context.Background(), tenantID)
	ctx = composables.WithActor(ctx, actor)
	return composables.WithTx(ctx, NoopTx{})
}

// AnonymousContext carries only the transaction marker, for exercising the
// missing-identity paths.
func AnonymousContext() context.Context {
	return composables.WithTx(context.Background(), NoopTx{})
}
