// Package config provides the PostgreSQL connections and OpenTelemetry providers of the example command.
//
// All three connection types supported by the postgresengine Store can be created from the same DSN,
// read from JSONAPI_POSTGRES_DSN.
package config
