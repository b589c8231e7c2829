package postgresengine

import "github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/postgresengine/internal/adapters"

// NewStoreFromAdapter lets tests run the Store against a scripted adapter.
func NewStoreFromAdapter(db adapters.DBAdapter, options ...Option) (Store, error) {
	return newStore(db, options...)
}
