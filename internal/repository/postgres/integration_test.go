//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dtroode/easygrocer/internal/model"
	repo "github.com/dtroode/easygrocer/internal/repository/postgres"
	"github.com/dtroode/easygrocer/internal/testutil"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "easygrocer_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/easygrocer_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestDocumentRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	conn, err := repo.NewConnection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	notifier := repo.NewNotifier(conn, testutil.MakeNoopLogger())
	require.NoError(t, notifier.Start(ctx))
	t.Cleanup(notifier.Close)

	docs := repo.NewDocumentRepository(conn, notifier)

	key, err := docs.CreateOne(ctx, "products", model.Fields{
		"name":               "Rice",
		"category":           "Grains",
		"price":              40.0,
		model.FieldCreatedAt: model.ServerTimestamp,
		model.FieldUpdatedAt: model.ServerTimestamp,
	})
	require.NoError(t, err)
	require.NotEmpty(t, key)

	created, err := docs.GetOne(ctx, "products", key)
	require.NoError(t, err)
	assert.Equal(t, "Rice", created.Fields["name"])
	assert.Equal(t, 40.0, created.Fields["price"])
	createdAt := model.TimeField(created.Fields, model.FieldCreatedAt)
	require.False(t, createdAt.IsZero())

	require.NoError(t, docs.MergeOne(ctx, "products", key, model.Fields{
		"price":              5.0,
		model.FieldCreatedAt: model.ServerTimestamp,
		model.FieldUpdatedAt: model.ServerTimestamp,
	}))

	merged, err := docs.GetOne(ctx, "products", key)
	require.NoError(t, err)
	assert.Equal(t, 5.0, merged.Fields["price"])
	assert.Equal(t, "Rice", merged.Fields["name"])
	assert.Equal(t, "Grains", merged.Fields["category"])
	assert.Equal(t, createdAt, model.TimeField(merged.Fields, model.FieldCreatedAt))

	require.NoError(t, docs.MergeOne(ctx, "products", "upserted", model.Fields{"name": "Salt"}))
	upserted, err := docs.GetOne(ctx, "products", "upserted")
	require.NoError(t, err)
	assert.Equal(t, "Salt", upserted.Fields["name"])
	upsertedAt := model.TimeField(upserted.Fields, model.FieldCreatedAt)
	require.False(t, upsertedAt.IsZero())

	require.NoError(t, docs.MergeOne(ctx, "products", "upserted", model.Fields{"name": "Sea salt"}))
	remerged, err := docs.GetOne(ctx, "products", "upserted")
	require.NoError(t, err)
	assert.Equal(t, upsertedAt, model.TimeField(remerged.Fields, model.FieldCreatedAt))

	require.NoError(t, docs.DeleteOne(ctx, "products", key))
	_, err = docs.GetOne(ctx, "products", key)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.NoError(t, docs.DeleteOne(ctx, "products", key))
}

func TestDocumentRepository_Subscribe(t *testing.T) {
	ctx := context.Background()
	conn, err := repo.NewConnection(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	notifier := repo.NewNotifier(conn, testutil.MakeNoopLogger())
	require.NoError(t, notifier.Start(ctx))
	t.Cleanup(notifier.Close)

	docs := repo.NewDocumentRepository(conn, notifier)

	var mu sync.Mutex
	var last model.Snapshot
	pushes := 0

	unsubscribe, err := docs.Subscribe(ctx, "watched", func(s model.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		last = s
		pushes++
	}, func(err error) { t.Errorf("unexpected subscription error: %v", err) })
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return pushes > 0
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, docs.MergeOne(ctx, "watched", "a", model.Fields{"name": "A"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(last.Documents) == 1 && last.Documents[0].Key == "a"
	}, 5*time.Second, 20*time.Millisecond)

	unsubscribe()
	mu.Lock()
	seen := pushes
	mu.Unlock()

	require.NoError(t, docs.MergeOne(ctx, "watched", "b", model.Fields{"name": "B"}))
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, seen, pushes)
}
