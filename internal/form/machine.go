// Package form drives a create or edit screen for one document: it loads the
// existing document, holds the draft, validates it and submits it through the
// mutation controller.
package form

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"sync"

	"github.com/dtroode/easygrocer/internal/async"
	"github.com/dtroode/easygrocer/internal/logger"
	"github.com/dtroode/easygrocer/internal/model"
	"github.com/dtroode/easygrocer/internal/observer"
)

// NewKey selects create mode when passed as Config.Key.
const NewKey = "new"

var (
	// ErrNotEditable is returned for edits and submits outside Ready and Error.
	ErrNotEditable = errors.New("form is not editable")
	// ErrDisposed is returned once the machine has been disposed.
	ErrDisposed = errors.New("form disposed")
	// ErrUnknownField is returned for fields the schema does not define.
	ErrUnknownField = errors.New("unknown field")
	// ErrNoImageField is returned by AttachImage when the schema has no image field.
	ErrNoImageField = errors.New("form has no image field")
)

type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "create"
}

type State int

const (
	StateLoading State = iota
	StateReady
	StateSubmitting
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Controller is the subset of the mutation controller a form needs.
type Controller interface {
	Get(ctx context.Context, collection, key string) (model.Document, error)
	Create(ctx context.Context, collection string, payload model.Fields) (string, error)
	Update(ctx context.Context, collection, key string, payload model.Fields) error
}

// Uploader stores attached images and returns their public URL.
type Uploader interface {
	UploadImage(ctx context.Context, folder, filename string, r io.Reader, contentType string) (string, error)
}

type Config struct {
	Schema     Schema
	Key        string
	Controller Controller
	// Uploader is optional; without it AttachImage fails.
	Uploader Uploader
	Logger   *logger.Logger
}

// View is what observers render. Draft is a copy.
type View struct {
	Mode    Mode
	State   State
	Key     string
	Draft   map[string]string
	Message string

	seq uint64
}

// Machine is the state machine of one form screen.
//
// Observers are invoked serially and must not call Set, Submit or
// AttachImage; Dispose is allowed.
type Machine struct {
	schema     Schema
	mode       Mode
	controller Controller
	uploader   Uploader
	logger     *logger.Logger

	mu       sync.Mutex
	key      string
	state    State
	draft    map[string]string
	message  string
	disposed bool
	seq      uint64

	publishMu sync.Mutex
	published uint64
	observers observer.Registry[View]

	loaded *async.Future[model.Document]
}

// New creates a machine. In edit mode the point read starts immediately and
// the machine stays Loading until it resolves.
func New(ctx context.Context, cfg Config) *Machine {
	m := &Machine{
		schema:     cfg.Schema,
		controller: cfg.Controller,
		uploader:   cfg.Uploader,
		draft:      map[string]string{},
		state:      StateReady,
	}

	if cfg.Key != "" && cfg.Key != NewKey {
		m.mode = ModeEdit
		m.key = cfg.Key
		m.state = StateLoading
	}

	m.logger = cfg.Logger.With(
		"collection", m.schema.Collection,
		"mode", m.mode.String(),
		"key", m.key,
	)

	if m.mode == ModeCreate {
		m.loaded = async.Resolved(model.Document{})
		return m
	}

	m.loaded = async.Go(func() (model.Document, error) {
		doc, err := m.controller.Get(ctx, m.schema.Collection, m.key)
		m.finishLoad(doc, err)
		return doc, err
	})
	return m
}

// Loaded resolves once the point read has completed and its outcome is
// reflected in the state. In create mode it is already resolved.
func (m *Machine) Loaded() *async.Future[model.Document] {
	return m.loaded
}

// Observe registers fn for every state change.
func (m *Machine) Observe(fn func(View)) (cancel func()) {
	return m.observers.Attach(fn)
}

// View returns the current view.
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewLocked()
}

// Set changes one draft field. From Error it clears the message and
// returns to Ready.
func (m *Machine) Set(field, value string) error {
	if _, ok := m.schema.field(field); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}

	m.mu.Lock()
	if err := m.editableLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.draft[field] = value
	m.state = StateReady
	m.message = ""
	v := m.changedLocked()
	m.mu.Unlock()

	m.publish(v)
	return nil
}

// Submit validates the draft and writes it. The returned future resolves
// with the document key after the state has moved to Success or Error.
// Validation failures resolve immediately with a *model.ValidationError and
// no write is attempted.
func (m *Machine) Submit(ctx context.Context) *async.Future[string] {
	m.mu.Lock()
	if err := m.editableLocked(); err != nil {
		m.mu.Unlock()
		return async.Failed[string](err)
	}

	payload, err := m.schema.payload(m.draft)
	if err != nil {
		m.state = StateError
		m.message = m.schema.InvalidMessage
		v := m.changedLocked()
		m.mu.Unlock()

		m.logger.Debug("form validation failed", "error", err)
		m.publish(v)
		return async.Failed[string](err)
	}

	m.state = StateSubmitting
	m.message = ""
	key := m.key
	v := m.changedLocked()
	m.mu.Unlock()

	m.publish(v)

	return async.Go(func() (string, error) {
		key, err := m.save(ctx, key, payload)
		m.finishSubmit(key, err)
		return key, err
	})
}

// AttachImage uploads an image and puts its URL into the schema's image
// field, as if set with Set.
func (m *Machine) AttachImage(ctx context.Context, filename string, r io.Reader, contentType string) error {
	if m.schema.ImageField == "" || m.uploader == nil {
		return ErrNoImageField
	}

	m.mu.Lock()
	err := m.editableLocked()
	m.mu.Unlock()
	if err != nil {
		return err
	}

	url, err := m.uploader.UploadImage(ctx, m.schema.ImageFolder, filename, r, contentType)
	if err != nil {
		m.logger.Error("failed to attach image", "error", err)
		return fmt.Errorf("failed to upload image: %w", err)
	}

	return m.Set(m.schema.ImageField, url)
}

// Dispose marks the screen as gone. Pending loads and submits still complete
// but no longer change state or notify observers.
func (m *Machine) Dispose() {
	m.mu.Lock()
	m.disposed = true
	m.draft = map[string]string{}
	m.mu.Unlock()

	m.observers.DetachAll()
}

func (m *Machine) save(ctx context.Context, key string, payload model.Fields) (string, error) {
	if m.mode == ModeCreate {
		return m.controller.Create(ctx, m.schema.Collection, payload)
	}
	if err := m.controller.Update(ctx, m.schema.Collection, key, payload); err != nil {
		return "", err
	}
	return key, nil
}

func (m *Machine) finishLoad(doc model.Document, err error) {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	if err != nil {
		m.state = StateError
		m.message = m.schema.LoadFailedMessage
		m.draft = map[string]string{}
	} else {
		m.state = StateReady
		m.draft = m.schema.draftFrom(doc.Fields)
	}
	v := m.changedLocked()
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("failed to load document", "error", err)
	}
	m.publish(v)
}

func (m *Machine) finishSubmit(key string, err error) {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	if err != nil {
		m.state = StateError
		m.message = m.schema.SaveFailedMessage
	} else {
		m.state = StateSuccess
		m.key = key
		m.draft = map[string]string{}
	}
	v := m.changedLocked()
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("failed to save document", "error", err)
	} else {
		m.logger.Info("document saved", "saved_key", key)
	}
	m.publish(v)
}

func (m *Machine) editableLocked() error {
	if m.disposed {
		return ErrDisposed
	}
	if m.state != StateReady && m.state != StateError {
		return ErrNotEditable
	}
	return nil
}

func (m *Machine) changedLocked() View {
	m.seq++
	return m.viewLocked()
}

func (m *Machine) viewLocked() View {
	return View{
		Mode:    m.mode,
		State:   m.state,
		Key:     m.key,
		Draft:   maps.Clone(m.draft),
		Message: m.message,
		seq:     m.seq,
	}
}

// publish delivers v unless a later view was already delivered.
func (m *Machine) publish(v View) {
	m.publishMu.Lock()
	defer m.publishMu.Unlock()

	if v.seq <= m.published {
		return
	}
	m.published = v.seq
	m.observers.Notify(v)
}
