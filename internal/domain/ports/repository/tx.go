package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle passed through repository methods.
// The concrete type is infra-defined (pgx.Tx for Postgres); repositories must
// gracefully accept nil (non-transactional path).
type Tx interface{}

// TransactionManager executes a function within a database transaction,
// passing the underlying handle via `tx`. Keeps use-case interfaces clean of
// driver types.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
