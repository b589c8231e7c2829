package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

const ddlResources = `CREATE TABLE IF NOT EXISTS %[1]s (
    resource_type TEXT        NOT NULL,
    id            TEXT        NOT NULL,
    attributes    JSONB       NOT NULL DEFAULT '{}'::jsonb,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (resource_type, id)
)`

const ddlRelationships = `CREATE TABLE IF NOT EXISTS %[1]s (
    resource_type TEXT   NOT NULL,
    resource_id   TEXT   NOT NULL,
    field         TEXT   NOT NULL,
    related_type  TEXT   NOT NULL,
    related_id    TEXT   NOT NULL,
    position      BIGSERIAL,
    PRIMARY KEY (resource_type, resource_id, field, related_type, related_id)
)`

const ddlRelatedIndex = `CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (related_type, related_id)`

// CreateTablesSQL returns the statements creating the resources and relationships tables.
// Table names may be schema-qualified, e.g. "api.resources".
func (s Store) CreateTablesSQL() []string {
	relationships := quoteIdentifier(s.relationshipsTable)
	index := pgx.Identifier{strings.ReplaceAll(s.relationshipsTable, ".", "_") + "_related_idx"}.Sanitize()

	return []string{
		fmt.Sprintf(ddlResources, quoteIdentifier(s.resourcesTable)),
		fmt.Sprintf(ddlRelationships, relationships),
		fmt.Sprintf(ddlRelatedIndex, relationships, index),
	}
}

// Migrate creates the tables of the Store unless they exist.
func (s Store) Migrate(ctx context.Context) error {
	for _, statement := range s.CreateTablesSQL() {
		if err := s.exec(ctx, logActionMigrate, func() (string, error) { return statement, nil }); err != nil {
			return errors.Join(ErrMigrationFailed, err)
		}
	}

	s.observers.Info(ctx, logMsgMigrated, "resources_table", s.resourcesTable, "relationships_table", s.relationshipsTable)

	return nil
}

func quoteIdentifier(name string) string {
	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}
