// Package memory implements model.DocumentStore in process memory. It backs
// tests and local runs without a database.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/easygrocer/internal/model"
)

var _ model.DocumentStore = (*DocumentRepository)(nil)

type collection struct {
	order []string
	docs  map[string]model.Fields
}

type subscriber struct {
	pending chan model.Snapshot
	done    chan struct{}
	once    sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() { close(s.done) })
}

// DocumentRepository keeps collections in memory and pushes a full snapshot
// to subscribers after every write.
type DocumentRepository struct {
	mu          sync.Mutex
	collections map[string]*collection
	subs        map[string]map[uint64]*subscriber
	nextID      uint64
	now         func() time.Time
}

// NewDocumentRepository creates an empty repository.
func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{
		collections: make(map[string]*collection),
		subs:        make(map[string]map[uint64]*subscriber),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe delivers the current collection and every later change on a
// dedicated goroutine. Intermediate snapshots may be coalesced; the latest
// one is always delivered.
func (r *DocumentRepository) Subscribe(ctx context.Context, name string, onNext func(model.Snapshot), onError func(error)) (model.Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &subscriber{
		pending: make(chan model.Snapshot, 1),
		done:    make(chan struct{}),
	}

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	if r.subs[name] == nil {
		r.subs[name] = make(map[uint64]*subscriber)
	}
	r.subs[name][id] = sub
	sub.pending <- r.snapshotLocked(name)
	r.mu.Unlock()

	go func() {
		for {
			select {
			case <-sub.done:
				return
			case snap := <-sub.pending:
				select {
				case <-sub.done:
					return
				default:
				}
				onNext(snap)
			}
		}
	}()

	return func() {
		r.mu.Lock()
		delete(r.subs[name], id)
		r.mu.Unlock()
		sub.stop()
	}, nil
}

// GetOne returns a copy of the stored document.
func (r *DocumentRepository) GetOne(ctx context.Context, name, key string) (model.Document, error) {
	if err := ctx.Err(); err != nil {
		return model.Document{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.collections[name]
	if !ok {
		return model.Document{}, model.ErrNotFound
	}
	fields, ok := c.docs[key]
	if !ok {
		return model.Document{}, model.ErrNotFound
	}
	return model.Document{Key: key, Fields: fields.Clone()}, nil
}

// CreateOne stores fields under a fresh key.
func (r *DocumentRepository) CreateOne(ctx context.Context, name string, fields model.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.collectionLocked(name)
	key := uuid.NewString()
	for _, taken := c.docs[key]; taken; _, taken = c.docs[key] {
		key = uuid.NewString()
	}

	c.docs[key] = r.stamp(fields)
	c.order = append(c.order, key)
	r.publishLocked(name)

	return key, nil
}

// MergeOne overwrites the given fields and leaves the rest untouched. A
// missing key is created with createdAt stamped. An existing createdAt is
// never replaced.
func (r *DocumentRepository) MergeOne(ctx context.Context, name, key string, fields model.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.collectionLocked(name)
	incoming := r.stamp(fields)

	existing, ok := c.docs[key]
	if !ok {
		if _, set := incoming[model.FieldCreatedAt]; !set {
			incoming[model.FieldCreatedAt] = r.now()
		}
		c.docs[key] = incoming
		c.order = append(c.order, key)
		r.publishLocked(name)
		return nil
	}

	merged := existing.Clone()
	for k, v := range incoming {
		if k == model.FieldCreatedAt {
			if _, set := existing[k]; set {
				continue
			}
		}
		merged[k] = v
	}
	c.docs[key] = merged
	r.publishLocked(name)

	return nil
}

// DeleteOne removes the document; a missing key is not an error.
func (r *DocumentRepository) DeleteOne(ctx context.Context, name, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.collections[name]
	if !ok {
		return nil
	}
	if _, ok := c.docs[key]; !ok {
		return nil
	}

	delete(c.docs, key)
	if i := slices.Index(c.order, key); i >= 0 {
		c.order = slices.Delete(c.order, i, i+1)
	}
	r.publishLocked(name)

	return nil
}

func (r *DocumentRepository) stamp(fields model.Fields) model.Fields {
	values, stamps := model.SplitStamps(fields)
	now := r.now()
	for _, name := range stamps {
		values[name] = now
	}
	return values
}

func (r *DocumentRepository) collectionLocked(name string) *collection {
	c, ok := r.collections[name]
	if !ok {
		c = &collection{docs: make(map[string]model.Fields)}
		r.collections[name] = c
	}
	return c
}

func (r *DocumentRepository) snapshotLocked(name string) model.Snapshot {
	snap := model.Snapshot{Collection: name, Documents: []model.Document{}}
	c, ok := r.collections[name]
	if !ok {
		return snap
	}
	for _, key := range c.order {
		snap.Documents = append(snap.Documents, model.Document{Key: key, Fields: c.docs[key].Clone()})
	}
	return snap
}

func (r *DocumentRepository) publishLocked(name string) {
	subs := r.subs[name]
	if len(subs) == 0 {
		return
	}
	for _, sub := range subs {
		select {
		case <-sub.pending:
		default:
		}
		sub.pending <- r.snapshotLocked(name)
	}
}
