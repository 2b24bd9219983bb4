package form

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	servermocks "github.com/dtroode/easygrocer/internal/mocks"
	"github.com/dtroode/easygrocer/internal/model"
	"github.com/dtroode/easygrocer/internal/service"
	"github.com/dtroode/easygrocer/internal/testutil"
)

type updateCall struct {
	collection string
	key        string
	payload    model.Fields
}

// fakeController records writes. When a gate channel is set the matching
// call blocks until the channel is closed.
type fakeController struct {
	mu sync.Mutex

	doc     model.Document
	getErr  error
	getGate chan struct{}

	createKey string
	saveErr   error
	saveGate  chan struct{}

	creates []model.Fields
	updates []updateCall
}

func (f *fakeController) Get(_ context.Context, _, key string) (model.Document, error) {
	if f.getGate != nil {
		<-f.getGate
	}
	if f.getErr != nil {
		return model.Document{}, f.getErr
	}
	doc := f.doc
	doc.Key = key
	return doc, nil
}

func (f *fakeController) Create(_ context.Context, _ string, payload model.Fields) (string, error) {
	if f.saveGate != nil {
		<-f.saveGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, payload)
	if f.saveErr != nil {
		return "", f.saveErr
	}
	return f.createKey, nil
}

func (f *fakeController) Update(_ context.Context, collection, key string, payload model.Fields) error {
	if f.saveGate != nil {
		<-f.saveGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updateCall{collection: collection, key: key, payload: payload})
	return f.saveErr
}

func (f *fakeController) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates) + len(f.updates)
}

type fakeUploader struct {
	folder string
	url    string
	err    error
}

func (u *fakeUploader) UploadImage(_ context.Context, folder, filename string, r io.Reader, _ string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.folder = folder
	_, _ = io.ReadAll(r)
	return u.url + "/" + filename, nil
}

func newMachine(t *testing.T, key string, ctrl Controller) *Machine {
	t.Helper()
	m := New(context.Background(), Config{
		Schema:     CatalogItemSchema,
		Key:        key,
		Controller: ctrl,
		Logger:     testutil.MakeNoopLogger(),
	})
	t.Cleanup(m.Dispose)
	return m
}

func await[T any](t *testing.T, f interface {
	Await(context.Context) (T, error)
}) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return f.Await(ctx)
}

func TestNew_Mode(t *testing.T) {
	tests := []struct {
		name      string
		key       string
		wantMode  Mode
		wantState State
	}{
		{name: "empty key creates", key: "", wantMode: ModeCreate, wantState: StateReady},
		{name: "reserved key creates", key: NewKey, wantMode: ModeCreate, wantState: StateReady},
		{name: "document key edits", key: "p1", wantMode: ModeEdit, wantState: StateLoading},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{getGate: make(chan struct{})}
			m := newMachine(t, tt.key, ctrl)

			v := m.View()
			assert.Equal(t, tt.wantMode, v.Mode)
			assert.Equal(t, tt.wantState, v.State)
			close(ctrl.getGate)
		})
	}
}

func TestMachine_SubmitValidation(t *testing.T) {
	tests := []struct {
		name  string
		draft map[string]string
		field string
	}{
		{name: "empty name", draft: map[string]string{"name": "   ", "price": "40"}, field: "name"},
		{name: "missing price", draft: map[string]string{"name": "Rice"}, field: "price"},
		{name: "non-numeric price", draft: map[string]string{"name": "Rice", "price": "abc"}, field: "price"},
		{name: "non-numeric stock", draft: map[string]string{"name": "Rice", "price": "40", "stock": "lots"}, field: "stock"},
		{name: "NaN price", draft: map[string]string{"name": "Rice", "price": "NaN"}, field: "price"},
		{name: "lowercase nan price", draft: map[string]string{"name": "Rice", "price": "nan"}, field: "price"},
		{name: "infinite price", draft: map[string]string{"name": "Rice", "price": "Inf"}, field: "price"},
		{name: "negative infinity stock", draft: map[string]string{"name": "Rice", "price": "40", "stock": "-infinity"}, field: "stock"},
		{name: "overflowing price", draft: map[string]string{"name": "Rice", "price": "1e400"}, field: "price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{}
			m := newMachine(t, NewKey, ctrl)
			for k, v := range tt.draft {
				require.NoError(t, m.Set(k, v))
			}

			_, err := await[string](t, m.Submit(context.Background()))

			var vErr *model.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			assert.Zero(t, ctrl.writes())

			v := m.View()
			assert.Equal(t, StateError, v.State)
			assert.Equal(t, CatalogItemSchema.InvalidMessage, v.Message)

			require.NoError(t, m.Set("name", "Rice"))
			v = m.View()
			assert.Equal(t, StateReady, v.State)
			assert.Empty(t, v.Message)
		})
	}
}

func TestMachine_CreateWritesNumericPriceAndStamps(t *testing.T) {
	store := &servermocks.DocumentStore{}
	store.On("CreateOne", mock.Anything, model.CollectionProducts, mock.MatchedBy(func(f model.Fields) bool {
		price, ok := f["price"].(float64)
		_, hasStock := f["stock"]
		return ok && price == 40 &&
			f["name"] == "Rice" &&
			!hasStock &&
			model.IsServerTimestamp(f[model.FieldCreatedAt]) &&
			model.IsServerTimestamp(f[model.FieldUpdatedAt])
	})).Return("p9", nil).Once()

	m := newMachine(t, NewKey, service.NewMutation(store, testutil.MakeNoopLogger()))

	var states []State
	m.Observe(func(v View) { states = append(states, v.State) })

	require.NoError(t, m.Set("name", "Rice"))
	require.NoError(t, m.Set("price", "40"))

	key, err := await[string](t, m.Submit(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, "p9", key)

	v := m.View()
	assert.Equal(t, StateSuccess, v.State)
	assert.Equal(t, "p9", v.Key)
	assert.Empty(t, v.Draft)
	assert.Equal(t, []State{StateReady, StateReady, StateSubmitting, StateSuccess}, states)

	store.AssertExpectations(t)
}

func TestMachine_OptionalNumber(t *testing.T) {
	ctrl := &fakeController{createKey: "p1"}
	m := newMachine(t, NewKey, ctrl)

	require.NoError(t, m.Set("name", "Rice"))
	require.NoError(t, m.Set("price", " 12.5 "))
	require.NoError(t, m.Set("stock", "3"))
	require.NoError(t, m.Set("description", "  long grain "))

	_, err := await[string](t, m.Submit(context.Background()))
	require.NoError(t, err)

	require.Len(t, ctrl.creates, 1)
	payload := ctrl.creates[0]
	assert.Equal(t, 12.5, payload["price"])
	assert.Equal(t, 3.0, payload["stock"])
	assert.Equal(t, "  long grain ", payload["description"])
	assert.Equal(t, "", payload["category"])
}

func TestMachine_EditLoadsDraft(t *testing.T) {
	ctrl := &fakeController{doc: model.Document{Fields: model.Fields{
		"name":     "Rice",
		"price":    40.0,
		"category": "Grains",
		"extra":    "ignored",
	}}}
	m := newMachine(t, "p1", ctrl)

	_, err := await[model.Document](t, m.Loaded())
	require.NoError(t, err)

	v := m.View()
	assert.Equal(t, StateReady, v.State)
	assert.Equal(t, map[string]string{"name": "Rice", "price": "40", "category": "Grains"}, v.Draft)

	require.NoError(t, m.Set("price", "45"))
	_, err = await[string](t, m.Submit(context.Background()))
	require.NoError(t, err)

	require.Len(t, ctrl.updates, 1)
	assert.Equal(t, "p1", ctrl.updates[0].key)
	assert.Equal(t, model.CollectionProducts, ctrl.updates[0].collection)
	assert.Equal(t, 45.0, ctrl.updates[0].payload["price"])
	assert.Empty(t, ctrl.creates)
	assert.Equal(t, StateSuccess, m.View().State)
}

func TestMachine_EditKeepsUnparseableStoredNumber(t *testing.T) {
	ctrl := &fakeController{doc: model.Document{Fields: model.Fields{
		"name":  "Rice",
		"price": "abc",
		"stock": "12",
	}}}
	m := newMachine(t, "p1", ctrl)

	_, err := await[model.Document](t, m.Loaded())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "Rice", "price": "abc", "stock": "12"}, m.View().Draft)

	_, err = await[string](t, m.Submit(context.Background()))
	var vErr *model.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "price", vErr.Field)
	assert.Empty(t, ctrl.updates)

	require.NoError(t, m.Set("price", "42.5"))
	_, err = await[string](t, m.Submit(context.Background()))
	require.NoError(t, err)
	require.Len(t, ctrl.updates, 1)
	assert.Equal(t, 42.5, ctrl.updates[0].payload["price"])
	assert.Equal(t, 12.0, ctrl.updates[0].payload["stock"])
}

func TestMachine_EditLoadFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "not found", err: model.ErrNotFound},
		{name: "transport", err: errors.New("unavailable")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{getErr: tt.err}
			m := newMachine(t, "p1", ctrl)

			_, err := await[model.Document](t, m.Loaded())
			require.ErrorIs(t, err, tt.err)

			v := m.View()
			assert.Equal(t, StateError, v.State)
			assert.Equal(t, CatalogItemSchema.LoadFailedMessage, v.Message)
			assert.Empty(t, v.Draft)

			require.NoError(t, m.Set("name", "Rice"))
			assert.Equal(t, StateReady, m.View().State)
		})
	}
}

func TestMachine_NotEditableWhileLoading(t *testing.T) {
	ctrl := &fakeController{getGate: make(chan struct{})}
	m := newMachine(t, "p1", ctrl)

	assert.ErrorIs(t, m.Set("name", "Rice"), ErrNotEditable)
	_, err := await[string](t, m.Submit(context.Background()))
	assert.ErrorIs(t, err, ErrNotEditable)

	close(ctrl.getGate)
	_, err = await[model.Document](t, m.Loaded())
	require.NoError(t, err)
	assert.NoError(t, m.Set("name", "Rice"))
}

func TestMachine_NotEditableWhileSubmitting(t *testing.T) {
	ctrl := &fakeController{createKey: "p1", saveGate: make(chan struct{})}
	m := newMachine(t, NewKey, ctrl)
	require.NoError(t, m.Set("name", "Rice"))
	require.NoError(t, m.Set("price", "1"))

	pending := m.Submit(context.Background())
	assert.Equal(t, StateSubmitting, m.View().State)

	assert.ErrorIs(t, m.Set("name", "Salt"), ErrNotEditable)
	_, err := await[string](t, m.Submit(context.Background()))
	assert.ErrorIs(t, err, ErrNotEditable)

	close(ctrl.saveGate)
	_, err = await[string](t, pending)
	require.NoError(t, err)

	assert.Equal(t, 1, ctrl.writes())
	assert.ErrorIs(t, m.Set("name", "Salt"), ErrNotEditable)
}

func TestMachine_SaveFailure(t *testing.T) {
	cause := model.NewStoreWriteError("create", model.CollectionProducts, "", errors.New("permission denied"))
	ctrl := &fakeController{saveErr: cause}
	m := newMachine(t, NewKey, ctrl)
	require.NoError(t, m.Set("name", "Rice"))
	require.NoError(t, m.Set("price", "40"))

	_, err := await[string](t, m.Submit(context.Background()))

	var writeErr *model.StoreWriteError
	require.ErrorAs(t, err, &writeErr)

	v := m.View()
	assert.Equal(t, StateError, v.State)
	assert.Equal(t, CatalogItemSchema.SaveFailedMessage, v.Message)
	assert.NotContains(t, v.Message, "permission denied")
	assert.Equal(t, "Rice", v.Draft["name"])

	// retry from Error
	ctrl.mu.Lock()
	ctrl.saveErr = nil
	ctrl.createKey = "p2"
	ctrl.mu.Unlock()

	key, err := await[string](t, m.Submit(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, "p2", key)
	assert.Equal(t, 2, ctrl.writes())
}

func TestMachine_DisposeIgnoresCompletions(t *testing.T) {
	t.Run("load", func(t *testing.T) {
		ctrl := &fakeController{getGate: make(chan struct{}), doc: model.Document{Fields: model.Fields{"name": "Rice"}}}
		m := newMachine(t, "p1", ctrl)

		notified := 0
		m.Observe(func(View) { notified++ })

		m.Dispose()
		close(ctrl.getGate)
		_, err := await[model.Document](t, m.Loaded())
		require.NoError(t, err)

		assert.Equal(t, StateLoading, m.View().State)
		assert.Zero(t, notified)
	})

	t.Run("submit", func(t *testing.T) {
		ctrl := &fakeController{createKey: "p1", saveGate: make(chan struct{})}
		m := newMachine(t, NewKey, ctrl)
		require.NoError(t, m.Set("name", "Rice"))
		require.NoError(t, m.Set("price", "40"))

		pending := m.Submit(context.Background())

		notified := 0
		m.Observe(func(View) { notified++ })
		m.Dispose()

		close(ctrl.saveGate)
		key, err := await[string](t, pending)
		require.NoError(t, err)
		assert.Equal(t, "p1", key)

		assert.Equal(t, StateSubmitting, m.View().State)
		assert.Zero(t, notified)
		assert.ErrorIs(t, m.Set("name", "x"), ErrDisposed)
	})
}

func TestMachine_DisposeFromObserver(t *testing.T) {
	ctrl := &fakeController{createKey: "p1"}
	m := newMachine(t, NewKey, ctrl)
	require.NoError(t, m.Set("name", "Rice"))
	require.NoError(t, m.Set("price", "40"))

	var seen []State
	m.Observe(func(v View) {
		seen = append(seen, v.State)
		if v.State == StateSuccess {
			m.Dispose()
		}
	})

	_, err := await[string](t, m.Submit(context.Background()))
	require.NoError(t, err)
	assert.Equal(t, []State{StateSubmitting, StateSuccess}, seen)
}

func TestMachine_SetUnknownField(t *testing.T) {
	m := newMachine(t, NewKey, &fakeController{})
	assert.ErrorIs(t, m.Set("colour", "red"), ErrUnknownField)
}

func TestMachine_AttachImage(t *testing.T) {
	uploader := &fakeUploader{url: "http://assets"}
	m := New(context.Background(), Config{
		Schema:     CatalogItemSchema,
		Controller: &fakeController{},
		Uploader:   uploader,
		Logger:     testutil.MakeNoopLogger(),
	})
	t.Cleanup(m.Dispose)

	err := m.AttachImage(context.Background(), "rice.jpg", strings.NewReader("img"), "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, "products", uploader.folder)
	assert.Equal(t, "http://assets/rice.jpg", m.View().Draft["imageUrl"])

	uploader.err = errors.New("bucket missing")
	err = m.AttachImage(context.Background(), "rice.jpg", strings.NewReader("img"), "image/jpeg")
	assert.Error(t, err)
	assert.Equal(t, "http://assets/rice.jpg", m.View().Draft["imageUrl"])
}

func TestMachine_AttachImageWithoutUploader(t *testing.T) {
	m := newMachine(t, NewKey, &fakeController{})
	err := m.AttachImage(context.Background(), "rice.jpg", strings.NewReader("img"), "image/jpeg")
	assert.ErrorIs(t, err, ErrNoImageField)
}

func TestProfileSchema_NothingRequired(t *testing.T) {
	ctrl := &fakeController{doc: model.Document{Fields: model.Fields{"displayName": "Ann"}}}
	m := New(context.Background(), Config{
		Schema:     ProfileSchema,
		Key:        "actor-1",
		Controller: ctrl,
		Logger:     testutil.MakeNoopLogger(),
	})
	t.Cleanup(m.Dispose)

	_, err := await[model.Document](t, m.Loaded())
	require.NoError(t, err)

	require.NoError(t, m.Set("address", ""))
	_, err = await[string](t, m.Submit(context.Background()))
	require.NoError(t, err)

	require.Len(t, ctrl.updates, 1)
	assert.Equal(t, model.CollectionUsers, ctrl.updates[0].collection)
	assert.Equal(t, "actor-1", ctrl.updates[0].key)
	assert.Equal(t, "Ann", ctrl.updates[0].payload["displayName"])
}
