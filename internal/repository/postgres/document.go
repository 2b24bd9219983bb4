package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dtroode/easygrocer/internal/model"
)

var _ model.DocumentStore = (*DocumentRepository)(nil)

// stampedData builds the jsonb payload from $3 and stamps every field named
// in $4 with the database clock.
const stampedData = `$3::jsonb || (
	SELECT COALESCE(jsonb_object_agg(s, to_jsonb(now())), '{}'::jsonb)
	FROM unnest($4::text[]) AS s
)`

type DocumentRepository struct {
	db       *Connection
	notifier *Notifier
}

func NewDocumentRepository(db *Connection, notifier *Notifier) *DocumentRepository {
	return &DocumentRepository{
		db:       db,
		notifier: notifier,
	}
}

// Subscribe pushes the whole collection once, then again after every change
// notification. Notifications arriving while a query runs are coalesced into
// one follow-up query.
func (r *DocumentRepository) Subscribe(ctx context.Context, collection string, onNext func(model.Snapshot), onError func(error)) (model.Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	dirty := make(chan struct{}, 1)
	failed := make(chan error, 1)

	signal := func() {
		select {
		case dirty <- struct{}{}:
		default:
		}
	}

	stop, err := r.notifier.Listen(collection, signal, func(err error) {
		select {
		case failed <- err:
		default:
		}
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to listen for changes: %w", err)
	}
	signal()

	go func() {
		defer stop()
		for {
			select {
			case <-subCtx.Done():
				return
			case err := <-failed:
				if subCtx.Err() == nil {
					onError(err)
				}
				return
			case <-dirty:
				snap, err := r.list(subCtx, collection)
				if subCtx.Err() != nil {
					return
				}
				if err != nil {
					onError(fmt.Errorf("failed to load collection: %w", err))
					return
				}
				onNext(snap)
			}
		}
	}()

	return model.Unsubscribe(cancel), nil
}

func (r *DocumentRepository) list(ctx context.Context, collection string) (model.Snapshot, error) {
	query := `
		SELECT key, data FROM documents
		WHERE collection = $1
		ORDER BY created_at ASC, key ASC`

	rows, err := r.db.Query(ctx, query, collection)
	if err != nil {
		return model.Snapshot{}, err
	}
	defer rows.Close()

	snap := model.Snapshot{Collection: collection, Documents: []model.Document{}}
	for rows.Next() {
		var doc model.Document
		if err := rows.Scan(&doc.Key, &doc.Fields); err != nil {
			return model.Snapshot{}, err
		}
		snap.Documents = append(snap.Documents, doc)
	}
	if err := rows.Err(); err != nil {
		return model.Snapshot{}, err
	}

	return snap, nil
}

func (r *DocumentRepository) GetOne(ctx context.Context, collection, key string) (model.Document, error) {
	query := `SELECT key, data FROM documents WHERE collection = $1 AND key = $2`

	var doc model.Document
	err := r.db.QueryRow(ctx, query, collection, key).Scan(&doc.Key, &doc.Fields)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Document{}, model.ErrNotFound
		}
		return model.Document{}, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

func (r *DocumentRepository) CreateOne(ctx context.Context, collection string, fields model.Fields) (string, error) {
	data, stamps, err := encodeFields(fields)
	if err != nil {
		return "", err
	}

	query := `INSERT INTO documents (collection, key, data) VALUES ($1, $2, ` + stampedData + `)`

	key := uuid.NewString()
	if _, err := r.db.Exec(ctx, query, collection, key, data, stamps); err != nil {
		return "", fmt.Errorf("failed to create document: %w", err)
	}

	return key, nil
}

// MergeOne upserts: present fields overwrite, absent fields stay, and an
// existing createdAt is kept. A document created here is stamped with
// createdAt even when fields do not ask for it.
func (r *DocumentRepository) MergeOne(ctx context.Context, collection, key string, fields model.Fields) error {
	data, stamps, err := encodeFields(fields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO documents (collection, key, data)
		VALUES ($1, $2, jsonb_build_object('createdAt', to_jsonb(now())) || ` + stampedData + `)
		ON CONFLICT (collection, key) DO UPDATE
		SET data = documents.data || (
				(` + stampedData + `) - CASE WHEN documents.data ? 'createdAt' THEN 'createdAt' ELSE '' END
			),
			updated_at = now()`

	if _, err := r.db.Exec(ctx, query, collection, key, data, stamps); err != nil {
		return fmt.Errorf("failed to merge document: %w", err)
	}

	return nil
}

func (r *DocumentRepository) DeleteOne(ctx context.Context, collection, key string) error {
	const query = `DELETE FROM documents WHERE collection = $1 AND key = $2`
	if _, err := r.db.Exec(ctx, query, collection, key); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func encodeFields(fields model.Fields) (string, []string, error) {
	values, stamps := model.SplitStamps(fields)
	if stamps == nil {
		stamps = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	return string(data), stamps, nil
}
