// Package query dispatches JSON:API read requests (collection, single resource, related resources
// and relationship linkage) through the same kind of middleware pipeline as the command package:
//
//	resolve-model -> authorize -> validate -> trigger-hooks -> Store
//
// FetchMany has no resolve-model stage. Validated query parameters are exposed
// as a jsonapi.QueryParameters value.
package query
