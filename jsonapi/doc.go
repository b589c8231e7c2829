// Package jsonapi provides the core abstractions and types for processing JSON:API requests
// as validated, authorized and store-executed operations.
//
// This package defines the value types, the operation model, the result and error model,
// and the capability interfaces that concrete collaborators (stores, authorizers, validators)
// implement. It is dependency-light on purpose: the command, query and atomic packages build
// the dispatch pipeline on top of it and the postgresengine package provides a Store.
//
// Key types:
//   - ResourceType, ResourceID: validated, immutable identifiers
//   - Ref, Href: pointers to a target resource (type + id or lid + optional relationship)
//   - Operation: Create, Update, Delete, UpdateToOne, UpdateToMany
//   - Result, Payload, ErrorList: the uniform success/failure envelope
//   - Store, AuthorizerFactory, ValidatorFactory, Hooks: consumed capabilities
//
// Common usage pattern:
//
//	ops, err := jsonapi.ParseAtomicOperations(body)
//	if err != nil {
//		var parseErr *jsonapi.ParseError
//		if errors.As(err, &parseErr) {
//			// render parseErr.ErrorList() with status 400
//		}
//	}
//
//	results, err := processor.Execute(ctx, req, ops)
package jsonapi
