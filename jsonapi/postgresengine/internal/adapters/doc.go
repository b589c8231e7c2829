// Package adapters provide database adapter implementations for the PostgreSQL resource store.
//
// The adapters support three PostgreSQL database libraries: pgx.Pool, sql.DB, and sqlx.DB.
// All of them present the same DBAdapter interface, including transactions, so the store
// does not care which connection type it was built from.
package adapters
