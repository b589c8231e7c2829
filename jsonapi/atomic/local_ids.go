package atomic

import (
	"errors"
	"fmt"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
)

var ErrDuplicateLocalID = errors.New("local id is already assigned")
var ErrEmptyLocalID = errors.New("local id must not be empty")

// LocalIDs maps the lids of one batch to the ids the store assigned.
// Entries are never overwritten. A LocalIDs belongs to a single Execute call and is not safe for concurrent use.
type LocalIDs struct {
	ids map[string]jsonapi.ResourceID
}

func NewLocalIDs() *LocalIDs {
	return &LocalIDs{ids: make(map[string]jsonapi.ResourceID)}
}

// Assign records lid -> id.
func (l *LocalIDs) Assign(lid string, id jsonapi.ResourceID) error {
	if lid == "" {
		return ErrEmptyLocalID
	}

	if _, ok := l.ids[lid]; ok {
		return errors.Join(ErrDuplicateLocalID, fmt.Errorf("lid %q", lid))
	}

	l.ids[lid] = id

	return nil
}

func (l *LocalIDs) Lookup(lid string) (jsonapi.ResourceID, bool) {
	id, ok := l.ids[lid]
	return id, ok
}

func (l *LocalIDs) Len() int {
	return len(l.ids)
}
