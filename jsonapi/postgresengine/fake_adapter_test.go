package postgresengine_test

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi/postgresengine/internal/adapters"
)

const (
	stmtBegin    = "BEGIN"
	stmtCommit   = "COMMIT"
	stmtRollback = "ROLLBACK"
	txPrefix     = "[tx] "
)

var errFakeDB = errors.New("fake database failure")

// fakeDB is a scripted adapters.DBAdapter. It records every statement, the ones run inside a
// transaction prefixed with "[tx] ", and answers queries with the rows of the first matching response.
type fakeDB struct {
	statements []string
	responses  []fakeResponse
	failOn     []string
	mu         sync.Mutex
}

type fakeResponse struct {
	contains string
	rows     [][]any
}

func newFakeDB() *fakeDB {
	return &fakeDB{}
}

// respond answers queries containing fragment with rows.
func (db *fakeDB) respond(fragment string, rows ...[]any) *fakeDB {
	db.responses = append(db.responses, fakeResponse{contains: fragment, rows: rows})
	return db
}

// failing makes every statement containing fragment fail.
func (db *fakeDB) failing(fragment string) *fakeDB {
	db.failOn = append(db.failOn, fragment)
	return db
}

func (db *fakeDB) Statements() []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	return append([]string(nil), db.statements...)
}

// StatementsContaining returns the recorded statements containing fragment.
func (db *fakeDB) StatementsContaining(fragment string) []string {
	var matching []string

	for _, statement := range db.Statements() {
		if strings.Contains(statement, fragment) {
			matching = append(matching, statement)
		}
	}

	return matching
}

func (db *fakeDB) Query(_ context.Context, query string) (adapters.DBRows, error) {
	return db.query("", query)
}

func (db *fakeDB) Exec(_ context.Context, query string) (adapters.DBResult, error) {
	return db.exec("", query)
}

func (db *fakeDB) Begin(_ context.Context) (adapters.DBTx, error) {
	if err := db.record("", stmtBegin); err != nil {
		return nil, err
	}

	return &fakeTx{db: db}, nil
}

func (db *fakeDB) query(prefix, query string) (adapters.DBRows, error) {
	if err := db.record(prefix, query); err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	for _, response := range db.responses {
		if strings.Contains(query, response.contains) {
			return &fakeRows{rows: response.rows, index: -1}, nil
		}
	}

	return &fakeRows{index: -1}, nil
}

func (db *fakeDB) exec(prefix, query string) (adapters.DBResult, error) {
	if err := db.record(prefix, query); err != nil {
		return nil, err
	}

	return fakeResult{}, nil
}

func (db *fakeDB) record(prefix, statement string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.statements = append(db.statements, prefix+statement)

	for _, fragment := range db.failOn {
		if strings.Contains(statement, fragment) {
			return errFakeDB
		}
	}

	return nil
}

type fakeTx struct {
	db *fakeDB
}

func (tx *fakeTx) Query(_ context.Context, query string) (adapters.DBRows, error) {
	return tx.db.query(txPrefix, query)
}

func (tx *fakeTx) Exec(_ context.Context, query string) (adapters.DBResult, error) {
	return tx.db.exec(txPrefix, query)
}

func (tx *fakeTx) Commit(_ context.Context) error {
	return tx.db.record("", stmtCommit)
}

func (tx *fakeTx) Rollback(_ context.Context) error {
	return tx.db.record("", stmtRollback)
}

type fakeRows struct {
	rows  [][]any
	index int
}

func (r *fakeRows) Next() bool {
	r.index++
	return r.index < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.index]

	for i, target := range dest {
		switch typed := target.(type) {
		case *string:
			*typed = row[i].(string)
		case *[]byte:
			*typed = []byte(row[i].(string))
		default:
			return errors.New("unsupported scan target")
		}
	}

	return nil
}

func (r *fakeRows) Close() error {
	return nil
}

type fakeResult struct{}

func (fakeResult) RowsAffected() (int64, error) {
	return 1, nil
}
