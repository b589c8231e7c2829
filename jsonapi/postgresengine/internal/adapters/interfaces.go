package adapters

import "context"

// Executor runs queries and statements, either on the pool or inside a transaction.
type Executor interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBAdapter defines the interface for database operations needed by the resource store.
type DBAdapter interface {
	Executor
	Begin(ctx context.Context) (DBTx, error)
}

// DBTx is an open transaction.
type DBTx interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}
