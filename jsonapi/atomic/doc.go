// Package atomic executes JSON:API atomic operations batches.
//
// A batch is a client-supplied, ordered list of operations. The Processor runs them one by one through
// the ordinary command pipeline and stops at the first failure:
//
//	check lids → for each operation: resolve lids → build command → dispatch → record lid → id
//
// Operations may refer to resources created earlier in the same batch by their local id (lid).
// Ids become known only once the creating operation succeeded, so a batch using a lid before it is
// declared, or declaring a lid twice, is rejected before any operation runs.
//
// The Processor does not roll back applied operations on its own. Configure WithTransactor to run each
// batch inside one storage transaction, e.g. with the postgresengine Store.
//
// Usage:
//
//	ops, err := jsonapi.ParseAtomicOperations(body)
//	if err != nil { ... } // a *jsonapi.ParseError converts into a 400 ErrorList
//
//	processor, err := atomic.NewProcessor(dispatcher, store, atomic.WithTransactor(store))
//	results, err := processor.Execute(ctx, req, ops)
//	if err != nil { ... } // infrastructure failure, the transaction was rolled back
//	if results.Failed() { ... } // results.Errors() carry pointers into the document
package atomic
