package fakes

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/AntonStoeckl/jsonapi-operations-go/jsonapi"
)

var ErrInjected = errors.New("injected store failure")
var ErrUnknownModel = errors.New("model was not created by this store")

// Record is the model type of the MemoryStore.
type Record struct {
	Type       string
	ID         string
	Attributes map[string]any
	ToOne      map[string]*jsonapi.ResourceIdentifier
	ToMany     map[string][]jsonapi.ResourceIdentifier
}

func (r *Record) clone() *Record {
	c := &Record{
		Type:       r.Type,
		ID:         r.ID,
		Attributes: maps.Clone(r.Attributes),
		ToOne:      maps.Clone(r.ToOne),
		ToMany:     make(map[string][]jsonapi.ResourceIdentifier, len(r.ToMany)),
	}

	for field, list := range r.ToMany {
		c.ToMany[field] = slices.Clone(list)
	}

	return c
}

// MemoryStore is an in-memory jsonapi.Store and jsonapi.Transactor for tests.
// Ids are assigned from a sequence starting at 1 unless configured otherwise.
type MemoryStore struct {
	records  map[string]map[string]*Record
	nextID   int
	failures map[string]error
	recorder *Recorder
	mu       sync.Mutex
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithRecorder records every store call as "store.<Method>".
func WithRecorder(recorder *Recorder) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.recorder = recorder
	}
}

// WithIDSequenceStart lets the id sequence start at first.
func WithIDSequenceStart(first int) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.nextID = first
	}
}

// FailingOn makes method (e.g. "Create") return err.
func FailingOn(method string, err error) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.failures[method] = err
	}
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		records:  make(map[string]map[string]*Record),
		nextID:   1,
		failures: make(map[string]error),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Seed stores a record directly, bypassing the Store API.
func (s *MemoryStore) Seed(resourceType string, id string, attributes map[string]any) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := &Record{
		Type:       resourceType,
		ID:         id,
		Attributes: maps.Clone(attributes),
		ToOne:      make(map[string]*jsonapi.ResourceIdentifier),
		ToMany:     make(map[string][]jsonapi.ResourceIdentifier),
	}

	if record.Attributes == nil {
		record.Attributes = make(map[string]any)
	}

	s.put(record)

	return record
}

// Get returns a copy of a stored record.
func (s *MemoryStore) Get(resourceType string, id string) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[resourceType][id]
	if !ok {
		return nil, false
	}

	return record.clone(), true
}

// Count returns the number of stored records of resourceType.
func (s *MemoryStore) Count(resourceType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records[resourceType])
}

func (s *MemoryStore) Find(_ context.Context, resourceType jsonapi.ResourceType, id jsonapi.ResourceID) (jsonapi.Model, bool, error) {
	if err := s.enter("Find"); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[resourceType.String()][id.String()]
	if !ok {
		return nil, false, nil
	}

	return record, true, nil
}

func (s *MemoryStore) Create(_ context.Context, resourceType jsonapi.ResourceType, validated map[string]any) (jsonapi.Model, error) {
	if err := s.enter("Create"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := &Record{
		Type:       resourceType.String(),
		Attributes: make(map[string]any),
		ToOne:      make(map[string]*jsonapi.ResourceIdentifier),
		ToMany:     make(map[string][]jsonapi.ResourceIdentifier),
	}

	if id, ok := validated["id"].(string); ok && id != "" {
		record.ID = id
	} else {
		record.ID = strconv.Itoa(s.nextID)
		s.nextID++
	}

	apply(record, validated)
	s.put(record)

	return record, nil
}

func (s *MemoryStore) Update(_ context.Context, _ jsonapi.ResourceType, model jsonapi.Model, validated map[string]any) (jsonapi.Model, error) {
	if err := s.enter("Update"); err != nil {
		return nil, err
	}

	record, err := asRecord(model)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	apply(record, validated)

	return record, nil
}

func (s *MemoryStore) Delete(_ context.Context, resourceType jsonapi.ResourceType, model jsonapi.Model) error {
	if err := s.enter("Delete"); err != nil {
		return err
	}

	record, err := asRecord(model)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records[resourceType.String()], record.ID)

	return nil
}

func (s *MemoryStore) ModifyToOne(
	_ context.Context,
	_ jsonapi.ResourceType,
	model jsonapi.Model,
	field string,
	identifier *jsonapi.ResourceIdentifier,
) (any, error) {
	if err := s.enter("ModifyToOne"); err != nil {
		return nil, err
	}

	record, err := asRecord(model)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record.ToOne[field] = identifier

	return s.lookup(identifier), nil
}

func (s *MemoryStore) ModifyToMany(
	_ context.Context,
	_ jsonapi.ResourceType,
	model jsonapi.Model,
	field string,
	mode jsonapi.ToManyMode,
	identifiers []jsonapi.ResourceIdentifier,
) (any, error) {
	if err := s.enter("ModifyToMany." + string(mode)); err != nil {
		return nil, err
	}

	record, err := asRecord(model)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := record.ToMany[field]

	switch mode {
	case jsonapi.ToManySync:
		current = slices.Clone(identifiers)
	case jsonapi.ToManyAttach:
		for _, identifier := range identifiers {
			if !slices.ContainsFunc(current, sameIdentifier(identifier)) {
				current = append(current, identifier)
			}
		}
	case jsonapi.ToManyDetach:
		for _, identifier := range identifiers {
			current = slices.DeleteFunc(current, sameIdentifier(identifier))
		}
	default:
		return nil, fmt.Errorf("unknown to-many mode %q", mode)
	}

	record.ToMany[field] = current

	return s.lookupAll(current), nil
}

// QueryAll returns the records of resourceType ordered by the sort fields, by id without any.
func (s *MemoryStore) QueryAll(_ context.Context, resourceType jsonapi.ResourceType, params jsonapi.QueryParameters) (any, error) {
	if err := s.enter("QueryAll"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := slices.Collect(maps.Values(s.records[resourceType.String()]))
	sortRecords(records, params.SortFields)

	return records, nil
}

func (s *MemoryStore) QueryOne(
	_ context.Context,
	resourceType jsonapi.ResourceType,
	id jsonapi.ResourceID,
	_ jsonapi.QueryParameters,
) (jsonapi.Model, bool, error) {
	if err := s.enter("QueryOne"); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[resourceType.String()][id.String()]
	if !ok {
		return nil, false, nil
	}

	return record, true, nil
}

func (s *MemoryStore) QueryToOne(_ context.Context, _ jsonapi.ResourceType, model jsonapi.Model, field string, _ jsonapi.QueryParameters) (any, error) {
	if err := s.enter("QueryToOne"); err != nil {
		return nil, err
	}

	record, err := asRecord(model)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lookup(record.ToOne[field]), nil
}

func (s *MemoryStore) QueryToMany(_ context.Context, _ jsonapi.ResourceType, model jsonapi.Model, field string, _ jsonapi.QueryParameters) (any, error) {
	if err := s.enter("QueryToMany"); err != nil {
		return nil, err
	}

	record, err := asRecord(model)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lookupAll(record.ToMany[field]), nil
}

func (s *MemoryStore) ResourceIDOf(_ jsonapi.ResourceType, model jsonapi.Model) (jsonapi.ResourceID, error) {
	record, err := asRecord(model)
	if err != nil {
		return jsonapi.ResourceID{}, err
	}

	return jsonapi.NewResourceID(record.ID)
}

// InTransaction snapshots all records and restores them when fn fails.
func (s *MemoryStore) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.recorder.Record("store.Begin")

	s.mu.Lock()
	snapshot := s.snapshot()
	nextID := s.nextID
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.records = snapshot
		s.nextID = nextID
		s.mu.Unlock()

		s.recorder.Record("store.Rollback")

		return err
	}

	s.recorder.Record("store.Commit")

	return nil
}

func (s *MemoryStore) enter(method string) error {
	s.recorder.Record("store." + method)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.failures[method]; ok {
		return errors.Join(ErrInjected, err)
	}

	return nil
}

func (s *MemoryStore) put(record *Record) {
	if s.records[record.Type] == nil {
		s.records[record.Type] = make(map[string]*Record)
	}

	s.records[record.Type][record.ID] = record
}

func (s *MemoryStore) snapshot() map[string]map[string]*Record {
	snapshot := make(map[string]map[string]*Record, len(s.records))

	for resourceType, byID := range s.records {
		snapshot[resourceType] = make(map[string]*Record, len(byID))
		for id, record := range byID {
			snapshot[resourceType][id] = record.clone()
		}
	}

	return snapshot
}

func (s *MemoryStore) lookup(identifier *jsonapi.ResourceIdentifier) *Record {
	if identifier == nil {
		return nil
	}

	return s.records[identifier.Type.String()][identifier.ID]
}

func (s *MemoryStore) lookupAll(identifiers []jsonapi.ResourceIdentifier) []*Record {
	records := make([]*Record, 0, len(identifiers))

	for _, identifier := range identifiers {
		if record := s.lookup(&identifier); record != nil {
			records = append(records, record)
		}
	}

	return records
}

func apply(record *Record, validated map[string]any) {
	for field, value := range validated {
		switch typed := value.(type) {
		case jsonapi.ToOne:
			record.ToOne[field] = typed.Identifier
		case jsonapi.ToMany:
			record.ToMany[field] = slices.Clone(typed.List)
		default:
			if field != "id" {
				record.Attributes[field] = value
			}
		}
	}
}

func asRecord(model jsonapi.Model) (*Record, error) {
	record, ok := model.(*Record)
	if !ok {
		return nil, errors.Join(ErrUnknownModel, fmt.Errorf("%T", model))
	}

	return record, nil
}

func sameIdentifier(identifier jsonapi.ResourceIdentifier) func(jsonapi.ResourceIdentifier) bool {
	return func(other jsonapi.ResourceIdentifier) bool {
		return other.Type.Equals(identifier.Type) && other.ID == identifier.ID
	}
}

func sortRecords(records []*Record, sortFields []jsonapi.SortField) {
	slices.SortFunc(records, func(a, b *Record) int {
		for _, sortField := range sortFields {
			c := strings.Compare(fmt.Sprint(a.Attributes[sortField.Field]), fmt.Sprint(b.Attributes[sortField.Field]))
			if sortField.Descending {
				c = -c
			}

			if c != 0 {
				return c
			}
		}

		return strings.Compare(a.ID, b.ID)
	})
}
