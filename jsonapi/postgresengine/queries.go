package postgresengine

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
)

const (
	dialectPostgres   = "postgres"
	colResourceType   = "resource_type"
	colID             = "id"
	colAttributes     = "attributes"
	colUpdatedAt      = "updated_at"
	colResourceID     = "resource_id"
	colField          = "field"
	colRelatedType    = "related_type"
	colRelatedID      = "related_id"
	colPosition       = "position"
	aliasRelationship = "rel"
	aliasResource     = "res"
	castJsonb         = "?::jsonb"
	mergeJsonb        = "? || ?::jsonb"
	attributeText     = "?->>?"
	sqlNow            = "NOW()"
	pageSize          = "size"
	pageNumber        = "number"
	pageLimit         = "limit"
	pageOffset        = "offset"
)

func (s Store) builder() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

func (s Store) toSQL(sqlQuery string, _ []any, err error) (string, error) {
	if err != nil {
		return "", errors.Join(ErrBuildingQueryFailed, err)
	}

	return sqlQuery, nil
}

func isResource(resourceType, id string) exp.ExpressionList {
	return goqu.And(goqu.C(colResourceType).Eq(resourceType), goqu.C(colID).Eq(id))
}

func ownsRelationship(resourceType, id, field string) exp.ExpressionList {
	return goqu.And(
		goqu.C(colResourceType).Eq(resourceType),
		goqu.C(colResourceID).Eq(id),
		goqu.C(colField).Eq(field),
	)
}

func (s Store) buildSelectResourceQuery(resourceType, id string) (string, error) {
	return s.toSQL(
		s.builder().
			From(s.resourcesTable).
			Select(colResourceType, colID, colAttributes).
			Where(isResource(resourceType, id)).
			Limit(1).
			ToSQL(),
	)
}

// buildSelectCollectionQuery applies filter, sort and page parameters. Attribute filters compare
// the text value, "id" filters accept a comma separated list. Sorting always ends with the id.
func (s Store) buildSelectCollectionQuery(resourceType string, params jsonapi.QueryParameters) (string, error) {
	where := []exp.Expression{goqu.C(colResourceType).Eq(resourceType)}

	for _, key := range slices.Sorted(maps.Keys(params.Filter)) {
		value := params.Filter[key]

		if key == colID {
			where = append(where, goqu.C(colID).In(filterList(value)))
			continue
		}

		where = append(where, goqu.L(attributeText, goqu.C(colAttributes), key).Eq(fmt.Sprint(value)))
	}

	order := make([]exp.OrderedExpression, 0, len(params.SortFields)+1)
	for _, sortField := range params.SortFields {
		var column exp.Orderable = goqu.L(attributeText, goqu.C(colAttributes), sortField.Field)
		if sortField.Field == colID {
			column = goqu.C(colID)
		}

		if sortField.Descending {
			order = append(order, column.Desc())
			continue
		}

		order = append(order, column.Asc())
	}

	order = append(order, goqu.C(colID).Asc())

	ds := s.builder().
		From(s.resourcesTable).
		Select(colResourceType, colID, colAttributes).
		Where(where...).
		Order(order...)

	if limit, offset, ok := pagination(params.Page); ok {
		ds = ds.Limit(limit).Offset(offset)
	}

	return s.toSQL(ds.ToSQL())
}

func (s Store) buildInsertResourceQuery(resourceType, id, attributes string) (string, error) {
	return s.toSQL(
		s.builder().
			Insert(s.resourcesTable).
			Rows(goqu.Record{
				colResourceType: resourceType,
				colID:           id,
				colAttributes:   goqu.L(castJsonb, attributes),
			}).
			ToSQL(),
	)
}

// buildMergeAttributesQuery merges the given attributes into the stored document and returns the result.
func (s Store) buildMergeAttributesQuery(resourceType, id, attributes string) (string, error) {
	return s.toSQL(
		s.builder().
			Update(s.resourcesTable).
			Set(goqu.Record{
				colAttributes: goqu.L(mergeJsonb, goqu.C(colAttributes), attributes),
				colUpdatedAt:  goqu.L(sqlNow),
			}).
			Where(isResource(resourceType, id)).
			Returning(colAttributes).
			ToSQL(),
	)
}

func (s Store) buildDeleteResourceQuery(resourceType, id string) (string, error) {
	return s.toSQL(
		s.builder().
			Delete(s.resourcesTable).
			Where(isResource(resourceType, id)).
			ToSQL(),
	)
}

// buildDeleteAllRelationshipsQuery removes every relationship the resource owns or is the target of.
func (s Store) buildDeleteAllRelationshipsQuery(resourceType, id string) (string, error) {
	return s.toSQL(
		s.builder().
			Delete(s.relationshipsTable).
			Where(goqu.Or(
				goqu.And(goqu.C(colResourceType).Eq(resourceType), goqu.C(colResourceID).Eq(id)),
				goqu.And(goqu.C(colRelatedType).Eq(resourceType), goqu.C(colRelatedID).Eq(id)),
			)).
			ToSQL(),
	)
}

// buildDeleteRelationshipsQuery removes the given targets of a relationship, all of them when targets is empty.
func (s Store) buildDeleteRelationshipsQuery(
	resourceType, id, field string,
	targets []jsonapi.ResourceIdentifier,
) (string, error) {

	where := []exp.Expression{ownsRelationship(resourceType, id, field)}

	if len(targets) > 0 {
		matches := make([]exp.Expression, 0, len(targets))
		for _, target := range targets {
			matches = append(matches, goqu.And(
				goqu.C(colRelatedType).Eq(target.Type.String()),
				goqu.C(colRelatedID).Eq(target.ID),
			))
		}

		where = append(where, goqu.Or(matches...))
	}

	return s.toSQL(
		s.builder().
			Delete(s.relationshipsTable).
			Where(where...).
			ToSQL(),
	)
}

// buildInsertRelationshipsQuery adds targets to a relationship, targets already present are kept as they are.
func (s Store) buildInsertRelationshipsQuery(
	resourceType, id, field string,
	targets []jsonapi.ResourceIdentifier,
) (string, error) {

	rows := make([]any, 0, len(targets))
	for _, target := range targets {
		rows = append(rows, goqu.Record{
			colResourceType: resourceType,
			colResourceID:   id,
			colField:        field,
			colRelatedType:  target.Type.String(),
			colRelatedID:    target.ID,
		})
	}

	return s.toSQL(
		s.builder().
			Insert(s.relationshipsTable).
			Rows(rows...).
			OnConflict(goqu.DoNothing()).
			ToSQL(),
	)
}

// buildSelectRelatedQuery selects the targets of a relationship in the order they were added.
func (s Store) buildSelectRelatedQuery(resourceType, id, field string) (string, error) {
	rel := func(col string) exp.IdentifierExpression { return goqu.T(aliasRelationship).Col(col) }
	res := func(col string) exp.IdentifierExpression { return goqu.T(aliasResource).Col(col) }

	return s.toSQL(
		s.builder().
			From(goqu.I(s.relationshipsTable).As(aliasRelationship)).
			Join(
				goqu.I(s.resourcesTable).As(aliasResource),
				goqu.On(
					res(colResourceType).Eq(rel(colRelatedType)),
					res(colID).Eq(rel(colRelatedID)),
				),
			).
			Select(res(colResourceType), res(colID), res(colAttributes)).
			Where(
				rel(colResourceType).Eq(resourceType),
				rel(colResourceID).Eq(id),
				rel(colField).Eq(field),
			).
			Order(rel(colPosition).Asc()).
			ToSQL(),
	)
}

func filterList(value any) []string {
	if list, ok := value.([]string); ok {
		return list
	}

	var list []string
	for _, item := range strings.Split(fmt.Sprint(value), ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			list = append(list, trimmed)
		}
	}

	return list
}

// pagination reads page[size]/page[number] or page[limit]/page[offset]. Numbers start at 1.
func pagination(page map[string]string) (limit uint, offset uint, ok bool) {
	if size, found := positive(page[pageSize]); found {
		number, hasNumber := positive(page[pageNumber])
		if !hasNumber {
			number = 1
		}

		return size, (number - 1) * size, true
	}

	if limit, found := positive(page[pageLimit]); found {
		offset, _ := parseUint(page[pageOffset])
		return limit, offset, true
	}

	return 0, 0, false
}

func positive(value string) (uint, bool) {
	n, ok := parseUint(value)
	return n, ok && n > 0
}

func parseUint(value string) (uint, bool) {
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, false
	}

	return uint(n), true
}
