// Package postgresengine provides a PostgreSQL implementation of jsonapi.Store and jsonapi.Transactor.
//
// The Store keeps every resource type in one resources table, attributes as a JSONB document,
// and relationships as rows of a relationships table. SQL is built with goqu and executed through
// one of three adapters: pgx.Pool (optionally with a read replica), sql.DB, or sqlx.DB.
//
// Basic usage:
//
//	store, err := postgresengine.NewStoreFromPGXPool(pool, postgresengine.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//
//	if err := store.Migrate(ctx); err != nil {
//		return err
//	}
//
// The Store doubles as the Transactor of an atomic.Processor: store calls made with the context
// handed to InTransaction's callback run inside that transaction.
//
//	processor, err := atomic.NewProcessor(dispatcher, store, atomic.WithTransactor(store))
//
// Models returned by the Store are *Resource values, collections are []*Resource.
package postgresengine
