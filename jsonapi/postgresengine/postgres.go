package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/internal/observe"
	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/postgresengine/internal/adapters"
)

const (
	defaultResourcesTableName     = "resources"
	defaultRelationshipsTableName = "resource_relationships"
)

var ErrNilDatabaseConnection = errors.New("database connection must not be nil")
var ErrEmptyTableName = errors.New("empty table name supplied")
var ErrNilIDGenerator = errors.New("id generator must not be nil")
var ErrBuildingQueryFailed = errors.New("building the sql query failed")
var ErrQueryingFailed = errors.New("database query failed")
var ErrExecutingFailed = errors.New("database statement failed")
var ErrScanningDBRowFailed = errors.New("scanning a database row failed")
var ErrEncodingAttributesFailed = errors.New("encoding attributes failed")
var ErrDecodingAttributesFailed = errors.New("decoding attributes failed")
var ErrUnknownModel = errors.New("model was not created by this store")
var ErrUnknownToManyMode = errors.New("unknown to-many mode")
var ErrBeginningTransactionFailed = errors.New("beginning a transaction failed")
var ErrCommittingTransactionFailed = errors.New("committing a transaction failed")
var ErrMigrationFailed = errors.New("creating the store tables failed")

// txKey carries the open transaction through the context passed to InTransaction's callback.
type txKey struct{}

// Store is a jsonapi.Store and jsonapi.Transactor on PostgreSQL.
//
// Every resource type shares the resources table: the attributes of a resource are one JSONB document.
// Relationships are rows of the relationships table, ordered by the time they were added.
type Store struct {
	db                 adapters.DBAdapter
	resourcesTable     string
	relationshipsTable string
	newID              func() string
	observers          observe.Observers
}

// NewStoreFromPGXPool creates a new Store using a pgx Pool with optional configuration.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options...)
}

// NewStoreFromPGXPoolWithReplica creates a new Store that reads from replica outside transactions.
func NewStoreFromPGXPoolWithReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (Store, error) {
	if db == nil || replica == nil {
		return Store{}, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapterWithReplica(db, replica), options...)
}

// NewStoreFromSQLDB creates a new Store using a sql.DB with optional configuration.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLX creates a new Store using a sqlx.DB with optional configuration.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (Store, error) {
	if db == nil {
		return Store{}, ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options...)
}

func newStore(db adapters.DBAdapter, options ...Option) (Store, error) {
	s := Store{
		db:                 db,
		resourcesTable:     defaultResourcesTableName,
		relationshipsTable: defaultRelationshipsTableName,
		newID:              uuid.NewString,
	}

	for _, option := range options {
		if err := option(&s); err != nil {
			return Store{}, err
		}
	}

	return s, nil
}

/***** jsonapi.Store *****/

func (s Store) Find(ctx context.Context, resourceType jsonapi.ResourceType, id jsonapi.ResourceID) (jsonapi.Model, bool, error) {
	var resource *Resource

	err := s.observe(ctx, operationFind, resourceType, func(ctx context.Context) (err error) {
		resource, err = s.findResource(ctx, resourceType.String(), id.String())
		return err
	})

	if err != nil || resource == nil {
		return nil, false, err
	}

	return resource, true, nil
}

// Create inserts the resource with a client-generated id when the validated data carries one,
// with a generated UUID otherwise. Relationship data is written in the same transaction.
func (s Store) Create(ctx context.Context, resourceType jsonapi.ResourceType, validated map[string]any) (jsonapi.Model, error) {
	var resource *Resource

	err := s.observe(ctx, operationCreate, resourceType, func(ctx context.Context) error {
		return s.InTransaction(ctx, func(ctx context.Context) (err error) {
			resource, err = s.createResource(ctx, resourceType.String(), splitValidated(validated))
			return err
		})
	})

	if err != nil {
		return nil, err
	}

	return resource, nil
}

// Update merges the validated attributes into the stored ones and replaces the given relationships.
func (s Store) Update(
	ctx context.Context,
	resourceType jsonapi.ResourceType,
	model jsonapi.Model,
	validated map[string]any,
) (jsonapi.Model, error) {

	current, err := asResource(model)
	if err != nil {
		return nil, err
	}

	updated := current

	err = s.observe(ctx, operationUpdate, resourceType, func(ctx context.Context) error {
		return s.InTransaction(ctx, func(ctx context.Context) (err error) {
			updated, err = s.updateResource(ctx, current, splitValidated(validated))
			return err
		})
	})

	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Delete removes the resource together with every relationship pointing from or to it.
func (s Store) Delete(ctx context.Context, resourceType jsonapi.ResourceType, model jsonapi.Model) error {
	resource, err := asResource(model)
	if err != nil {
		return err
	}

	return s.observe(ctx, operationDelete, resourceType, func(ctx context.Context) error {
		return s.InTransaction(ctx, func(ctx context.Context) error {
			if err := s.exec(ctx, logActionDelete, func() (string, error) {
				return s.buildDeleteAllRelationshipsQuery(resource.Type, resource.ID)
			}); err != nil {
				return err
			}

			return s.exec(ctx, logActionDelete, func() (string, error) {
				return s.buildDeleteResourceQuery(resource.Type, resource.ID)
			})
		})
	})
}

// ModifyToOne replaces a to-one relationship and returns the related *Resource, nil when cleared
// or when the target does not exist.
func (s Store) ModifyToOne(
	ctx context.Context,
	resourceType jsonapi.ResourceType,
	model jsonapi.Model,
	field string,
	identifier *jsonapi.ResourceIdentifier,
) (any, error) {

	resource, err := asResource(model)
	if err != nil {
		return nil, err
	}

	var related *Resource

	err = s.observe(ctx, operationModifyToOne, resourceType, func(ctx context.Context) error {
		return s.InTransaction(ctx, func(ctx context.Context) (err error) {
			var targets []jsonapi.ResourceIdentifier
			if identifier != nil {
				targets = []jsonapi.ResourceIdentifier{*identifier}
			}

			if err = s.replaceRelationship(ctx, resource, field, targets); err != nil {
				return err
			}

			if identifier == nil {
				return nil
			}

			related, err = s.findResource(ctx, identifier.Type.String(), identifier.ID)

			return err
		})
	})

	if err != nil || related == nil {
		return nil, err
	}

	return related, nil
}

// ModifyToMany attaches, detaches or syncs a to-many relationship and returns the related []*Resource.
func (s Store) ModifyToMany(
	ctx context.Context,
	resourceType jsonapi.ResourceType,
	model jsonapi.Model,
	field string,
	mode jsonapi.ToManyMode,
	identifiers []jsonapi.ResourceIdentifier,
) (any, error) {

	resource, err := asResource(model)
	if err != nil {
		return nil, err
	}

	var related []*Resource

	err = s.observe(ctx, operationModifyToMany, resourceType, func(ctx context.Context) error {
		return s.InTransaction(ctx, func(ctx context.Context) (err error) {
			switch mode {
			case jsonapi.ToManyAttach:
				err = s.attach(ctx, resource, field, identifiers)
			case jsonapi.ToManyDetach:
				err = s.detach(ctx, resource, field, identifiers)
			case jsonapi.ToManySync:
				err = s.replaceRelationship(ctx, resource, field, identifiers)
			default:
				err = errors.Join(ErrUnknownToManyMode, errors.New(string(mode)))
			}

			if err != nil {
				return err
			}

			related, err = s.relatedResources(ctx, resource, field)

			return err
		})
	})

	if err != nil {
		return nil, err
	}

	return related, nil
}

// QueryAll returns the []*Resource of resourceType matching the filter, sort and page parameters.
func (s Store) QueryAll(ctx context.Context, resourceType jsonapi.ResourceType, params jsonapi.QueryParameters) (any, error) {
	var resources []*Resource

	err := s.observe(ctx, operationQueryAll, resourceType, func(ctx context.Context) error {
		sqlQuery, err := s.buildSelectCollectionQuery(resourceType.String(), params)
		if err != nil {
			s.observers.Error(ctx, logMsgBuildQueryFailed, err, logAttrAction, logActionQuery)
			return err
		}

		resources, err = s.queryResources(ctx, logActionQuery, sqlQuery)

		return err
	})

	if err != nil {
		return nil, err
	}

	return resources, nil
}

func (s Store) QueryOne(
	ctx context.Context,
	resourceType jsonapi.ResourceType,
	id jsonapi.ResourceID,
	_ jsonapi.QueryParameters,
) (jsonapi.Model, bool, error) {

	var resource *Resource

	err := s.observe(ctx, operationQueryOne, resourceType, func(ctx context.Context) (err error) {
		resource, err = s.findResource(ctx, resourceType.String(), id.String())
		return err
	})

	if err != nil || resource == nil {
		return nil, false, err
	}

	return resource, true, nil
}

// QueryToOne returns the related *Resource, nil when the relationship is empty.
func (s Store) QueryToOne(
	ctx context.Context,
	resourceType jsonapi.ResourceType,
	model jsonapi.Model,
	field string,
	_ jsonapi.QueryParameters,
) (any, error) {

	resource, err := asResource(model)
	if err != nil {
		return nil, err
	}

	var related []*Resource

	err = s.observe(ctx, operationQueryToOne, resourceType, func(ctx context.Context) (err error) {
		related, err = s.relatedResources(ctx, resource, field)
		return err
	})

	if err != nil || len(related) == 0 {
		return nil, err
	}

	return related[0], nil
}

// QueryToMany returns the related []*Resource in the order they were added.
func (s Store) QueryToMany(
	ctx context.Context,
	resourceType jsonapi.ResourceType,
	model jsonapi.Model,
	field string,
	_ jsonapi.QueryParameters,
) (any, error) {

	resource, err := asResource(model)
	if err != nil {
		return nil, err
	}

	var related []*Resource

	err = s.observe(ctx, operationQueryToMany, resourceType, func(ctx context.Context) (err error) {
		related, err = s.relatedResources(ctx, resource, field)
		return err
	})

	if err != nil {
		return nil, err
	}

	return related, nil
}

func (s Store) ResourceIDOf(_ jsonapi.ResourceType, model jsonapi.Model) (jsonapi.ResourceID, error) {
	resource, err := asResource(model)
	if err != nil {
		return jsonapi.ResourceID{}, err
	}

	return jsonapi.NewResourceID(resource.ID)
}

/***** jsonapi.Transactor *****/

// InTransaction runs fn inside a transaction, committed when fn returns nil and rolled back otherwise.
// Store calls made with the context passed to fn join the transaction, so do nested InTransaction calls.
func (s Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(adapters.DBTx); ok {
		return fn(ctx)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		s.observers.Error(ctx, logMsgBeginFailed, err)
		return errors.Join(ErrBeginningTransactionFailed, err)
	}

	if fnErr := fn(context.WithValue(ctx, txKey{}, tx)); fnErr != nil {
		// the rollback must happen even when ctx was canceled
		if rollbackErr := tx.Rollback(context.WithoutCancel(ctx)); rollbackErr != nil {
			s.observers.Warn(ctx, logMsgRollbackFailed, logAttrError, rollbackErr.Error())
		}

		return fnErr
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		s.observers.Error(ctx, logMsgCommitFailed, commitErr)
		return errors.Join(ErrCommittingTransactionFailed, commitErr)
	}

	return nil
}

/***** internals *****/

func (s Store) executor(ctx context.Context) adapters.Executor {
	if tx, ok := ctx.Value(txKey{}).(adapters.DBTx); ok {
		return tx
	}

	return s.db
}

func (s Store) findResource(ctx context.Context, resourceType, id string) (*Resource, error) {
	sqlQuery, err := s.buildSelectResourceQuery(resourceType, id)
	if err != nil {
		s.observers.Error(ctx, logMsgBuildQueryFailed, err, logAttrAction, logActionFind)
		return nil, err
	}

	resources, err := s.queryResources(ctx, logActionFind, sqlQuery)
	if err != nil || len(resources) == 0 {
		return nil, err
	}

	return resources[0], nil
}

func (s Store) createResource(ctx context.Context, resourceType string, ws writeSet) (*Resource, error) {
	resource := &Resource{Type: resourceType, ID: ws.clientID, Attributes: ws.attributes}
	if resource.ID == "" {
		resource.ID = s.newID()
	}

	encoded, err := encodeAttributes(ws.attributes)
	if err != nil {
		s.observers.Error(ctx, logMsgEncodeAttributesFailed, err, logAttrResourceType, resourceType)
		return nil, err
	}

	if err := s.exec(ctx, logActionCreate, func() (string, error) {
		return s.buildInsertResourceQuery(resourceType, resource.ID, encoded)
	}); err != nil {
		return nil, err
	}

	if err := s.writeRelationships(ctx, resource, ws); err != nil {
		return nil, err
	}

	return resource, nil
}

func (s Store) updateResource(ctx context.Context, current *Resource, ws writeSet) (*Resource, error) {
	updated := current

	if len(ws.attributes) > 0 {
		encoded, err := encodeAttributes(ws.attributes)
		if err != nil {
			s.observers.Error(ctx, logMsgEncodeAttributesFailed, err, logAttrResourceType, current.Type)
			return nil, err
		}

		sqlQuery, err := s.buildMergeAttributesQuery(current.Type, current.ID, encoded)
		if err != nil {
			s.observers.Error(ctx, logMsgBuildQueryFailed, err, logAttrAction, logActionUpdate)
			return nil, err
		}

		attributes, err := s.queryAttributes(ctx, sqlQuery)
		if err != nil {
			return nil, err
		}

		updated = current.withAttributes(attributes)
	}

	if err := s.writeRelationships(ctx, updated, ws); err != nil {
		return nil, err
	}

	return updated, nil
}

// writeRelationships replaces every relationship present in the write set, in field order.
func (s Store) writeRelationships(ctx context.Context, resource *Resource, ws writeSet) error {
	relationships := ws.relationships()

	for _, field := range slices.Sorted(maps.Keys(relationships)) {
		if err := s.replaceRelationship(ctx, resource, field, relationships[field]); err != nil {
			return err
		}
	}

	return nil
}

func (s Store) replaceRelationship(ctx context.Context, resource *Resource, field string, targets []jsonapi.ResourceIdentifier) error {
	if err := s.exec(ctx, logActionRelationship, func() (string, error) {
		return s.buildDeleteRelationshipsQuery(resource.Type, resource.ID, field, nil)
	}); err != nil {
		return err
	}

	return s.attach(ctx, resource, field, targets)
}

func (s Store) attach(ctx context.Context, resource *Resource, field string, targets []jsonapi.ResourceIdentifier) error {
	if len(targets) == 0 {
		return nil
	}

	return s.exec(ctx, logActionRelationship, func() (string, error) {
		return s.buildInsertRelationshipsQuery(resource.Type, resource.ID, field, targets)
	})
}

func (s Store) detach(ctx context.Context, resource *Resource, field string, targets []jsonapi.ResourceIdentifier) error {
	if len(targets) == 0 {
		return nil
	}

	return s.exec(ctx, logActionRelationship, func() (string, error) {
		return s.buildDeleteRelationshipsQuery(resource.Type, resource.ID, field, targets)
	})
}

func (s Store) relatedResources(ctx context.Context, resource *Resource, field string) ([]*Resource, error) {
	sqlQuery, err := s.buildSelectRelatedQuery(resource.Type, resource.ID, field)
	if err != nil {
		s.observers.Error(ctx, logMsgBuildQueryFailed, err, logAttrAction, logActionRelated)
		return nil, err
	}

	return s.queryResources(ctx, logActionRelated, sqlQuery)
}

// exec builds and executes one statement.
func (s Store) exec(ctx context.Context, action string, build func() (string, error)) error {
	sqlQuery, err := build()
	if err != nil {
		s.observers.Error(ctx, logMsgBuildQueryFailed, err, logAttrAction, action)
		return err
	}

	start := time.Now()
	_, execErr := s.executor(ctx).Exec(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	if execErr != nil {
		s.observers.Error(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		return errors.Join(ErrExecutingFailed, execErr)
	}

	return nil
}

// executeQuery executes the SQL query and returns the rows.
func (s Store) executeQuery(ctx context.Context, action string, sqlQuery string) (adapters.DBRows, error) {
	start := time.Now()
	rows, queryErr := s.executor(ctx).Query(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, action, time.Since(start))

	if queryErr != nil {
		s.observers.Error(ctx, logMsgDBQueryFailed, queryErr, logAttrQuery, sqlQuery)
		return nil, errors.Join(ErrQueryingFailed, queryErr)
	}

	return rows, nil
}

func (s Store) queryResources(ctx context.Context, action string, sqlQuery string) ([]*Resource, error) {
	rows, err := s.executeQuery(ctx, action, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	resources := make([]*Resource, 0)

	for rows.Next() {
		var resource Resource
		var raw []byte

		if scanErr := rows.Scan(&resource.Type, &resource.ID, &raw); scanErr != nil {
			s.observers.Error(ctx, logMsgScanRowFailed, scanErr)
			return nil, errors.Join(ErrScanningDBRowFailed, scanErr)
		}

		attributes, decodeErr := decodeAttributes(raw)
		if decodeErr != nil {
			s.observers.Error(ctx, logMsgDecodeAttributesFailed, decodeErr, logAttrResourceType, resource.Type)
			return nil, decodeErr
		}

		resource.Attributes = attributes
		resources = append(resources, &resource)
	}

	return resources, nil
}

// queryAttributes reads the attributes document returned by an UPDATE ... RETURNING statement.
func (s Store) queryAttributes(ctx context.Context, sqlQuery string) (map[string]any, error) {
	rows, err := s.executeQuery(ctx, logActionUpdate, sqlQuery)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	var raw []byte

	if rows.Next() {
		if scanErr := rows.Scan(&raw); scanErr != nil {
			s.observers.Error(ctx, logMsgScanRowFailed, scanErr)
			return nil, errors.Join(ErrScanningDBRowFailed, scanErr)
		}
	}

	attributes, decodeErr := decodeAttributes(raw)
	if decodeErr != nil {
		s.observers.Error(ctx, logMsgDecodeAttributesFailed, decodeErr)
		return nil, decodeErr
	}

	return attributes, nil
}

// closeRows closes database rows and logs any errors.
func (s Store) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		s.observers.Warn(ctx, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}
