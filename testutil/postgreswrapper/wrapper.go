package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/jsonapi-operations-go/example/config"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/postgresengine"
)

const (
	// ResourcesTable is the resources table used by integration tests.
	ResourcesTable = "it_resources"

	// RelationshipsTable is the relationships table used by integration tests.
	RelationshipsTable = "it_resource_relationships"

	envPostgresDSN = "JSONAPI_POSTGRES_DSN"
)

// Wrapper abstracts over the supported connection types.
type Wrapper interface {
	Store() postgresengine.Store
	Exec(ctx context.Context, statement string) error
	Close()
}

// PGXPoolWrapper wraps a pgxpool-based Store.
type PGXPoolWrapper struct {
	pool  *pgxpool.Pool
	store postgresengine.Store
}

func (w *PGXPoolWrapper) Store() postgresengine.Store {
	return w.store
}

func (w *PGXPoolWrapper) Exec(ctx context.Context, statement string) error {
	_, err := w.pool.Exec(ctx, statement)
	return err
}

func (w *PGXPoolWrapper) Close() {
	w.pool.Close()
}

// SQLDBWrapper wraps a sql.DB-based Store.
type SQLDBWrapper struct {
	db    *sql.DB
	store postgresengine.Store
}

func (w *SQLDBWrapper) Store() postgresengine.Store {
	return w.store
}

func (w *SQLDBWrapper) Exec(ctx context.Context, statement string) error {
	_, err := w.db.ExecContext(ctx, statement)
	return err
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// SQLXWrapper wraps a sqlx-based Store.
type SQLXWrapper struct {
	db    *sqlx.DB
	store postgresengine.Store
}

func (w *SQLXWrapper) Store() postgresengine.Store {
	return w.store
}

func (w *SQLXWrapper) Exec(ctx context.Context, statement string) error {
	_, err := w.db.ExecContext(ctx, statement)
	return err
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close() // ignore error
}

// SkipWithoutDatabase skips t unless JSONAPI_POSTGRES_DSN points at a database.
func SkipWithoutDatabase(t testing.TB) {
	t.Helper()

	if os.Getenv(envPostgresDSN) == "" {
		t.Skipf("%s is not set", envPostgresDSN)
	}
}

// CreateWrapperWithTestConfig opens a Store on the integration test tables and creates them if needed.
func CreateWrapperWithTestConfig(t testing.TB, opts ...postgresengine.Option) Wrapper {
	t.Helper()

	ctx := context.Background()
	opts = append([]postgresengine.Option{postgresengine.WithTableNames(ResourcesTable, RelationshipsTable)}, opts...)

	var wrapper Wrapper

	switch adapter := config.DBAdapter(); adapter {
	case config.AdapterPGX:
		pool, err := config.PostgresPGXPool(ctx)
		require.NoError(t, err, "error connecting to DB pool in test setup")

		store, err := postgresengine.NewStoreFromPGXPool(pool, opts...)
		require.NoError(t, err, "error creating store")

		wrapper = &PGXPoolWrapper{pool: pool, store: store}

	case config.AdapterSQL:
		db, err := config.PostgresSQLDB(ctx)
		require.NoError(t, err, "error connecting to DB in test setup")

		store, err := postgresengine.NewStoreFromSQLDB(db, opts...)
		require.NoError(t, err, "error creating store")

		wrapper = &SQLDBWrapper{db: db, store: store}

	case config.AdapterSQLX:
		db, err := config.PostgresSQLX(ctx)
		require.NoError(t, err, "error connecting to DB in test setup")

		store, err := postgresengine.NewStoreFromSQLX(db, opts...)
		require.NoError(t, err, "error creating store")

		wrapper = &SQLXWrapper{db: db, store: store}

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported adapter type from env: %s", adapter))
	}

	require.NoError(t, wrapper.Store().Migrate(ctx), "error creating the store tables")
	t.Cleanup(wrapper.Close)

	return wrapper
}

// CleanUp empties the integration test tables.
func CleanUp(t testing.TB, wrapper Wrapper) {
	t.Helper()

	statement := fmt.Sprintf(
		"TRUNCATE TABLE %s, %s RESTART IDENTITY",
		pgx.Identifier{ResourcesTable}.Sanitize(),
		pgx.Identifier{RelationshipsTable}.Sanitize(),
	)

	require.NoError(t, wrapper.Exec(context.Background(), statement), "error cleaning up the store tables")
}

// CountRows returns the number of rows in table.
func CountRows(t testing.TB, wrapper Wrapper, table string) int {
	t.Helper()

	query := "SELECT COUNT(*) FROM " + pgx.Identifier{table}.Sanitize()

	var count int
	var err error

	switch w := wrapper.(type) {
	case *PGXPoolWrapper:
		err = w.pool.QueryRow(context.Background(), query).Scan(&count)

	case *SQLDBWrapper:
		err = w.db.QueryRow(query).Scan(&count)

	case *SQLXWrapper:
		err = w.db.QueryRow(query).Scan(&count)

	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", w))
	}

	require.NoError(t, err, "error counting rows")

	return count
}
