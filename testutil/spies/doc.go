// Package spies provides test doubles that capture logs, metrics and spans
// emitted by the dispatchers, the atomic processor and the postgres store.
package spies
