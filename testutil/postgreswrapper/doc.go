// Package postgreswrapper opens a postgresengine.Store on a real PostgreSQL database for integration tests.
//
// The connection type is selected with DB_ADAPTER (pgx, sql or sqlx), the database with JSONAPI_POSTGRES_DSN.
package postgreswrapper
