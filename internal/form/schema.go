package form

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dtroode/easygrocer/internal/model"
)

// Kind is how a field's text is turned into a stored value.
type Kind int

const (
	KindText Kind = iota
	KindNumber
)

// Field describes one editable field.
type Field struct {
	Name     string
	Kind     Kind
	Required bool
}

// Schema describes a form over one collection and the messages it shows.
type Schema struct {
	Collection string
	Fields     []Field

	// ImageField receives the URL of an attached image; empty disables
	// attachments. ImageFolder is the storage folder used for them.
	ImageField  string
	ImageFolder string

	LoadFailedMessage string
	InvalidMessage    string
	SaveFailedMessage string
}

// CatalogItemSchema edits documents of the products collection.
var CatalogItemSchema = Schema{
	Collection: model.CollectionProducts,
	Fields: []Field{
		{Name: "name", Kind: KindText, Required: true},
		{Name: "category", Kind: KindText},
		{Name: "price", Kind: KindNumber, Required: true},
		{Name: "unit", Kind: KindText},
		{Name: "stock", Kind: KindNumber},
		{Name: "imageUrl", Kind: KindText},
		{Name: "description", Kind: KindText},
	},
	ImageField:        "imageUrl",
	ImageFolder:       "products",
	LoadFailedMessage: "Could not load product.",
	InvalidMessage:    "Please enter a valid name and numeric price.",
	SaveFailedMessage: "Failed to save product.",
}

// ProfileSchema edits the profile of the current actor, keyed by actor id.
var ProfileSchema = Schema{
	Collection: model.CollectionUsers,
	Fields: []Field{
		{Name: "displayName", Kind: KindText},
		{Name: "lastName", Kind: KindText},
		{Name: "email", Kind: KindText},
		{Name: "phoneNumber", Kind: KindText},
		{Name: "address", Kind: KindText},
		{Name: "photoURL", Kind: KindText},
	},
	ImageField:        "photoURL",
	ImageFolder:       "profiles",
	LoadFailedMessage: "Could not load profile.",
	InvalidMessage:    "Please check the highlighted fields.",
	SaveFailedMessage: "Failed to update profile.",
}

func (s Schema) field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// payload validates draft and converts it into store fields. Number fields
// are parsed here and never stored as text; only finite values pass. A blank
// optional number is left out of the payload.
func (s Schema) payload(draft map[string]string) (model.Fields, error) {
	fields := make(model.Fields, len(s.Fields))
	for _, f := range s.Fields {
		raw := draft[f.Name]
		trimmed := strings.TrimSpace(raw)

		if f.Required && trimmed == "" {
			return nil, &model.ValidationError{Field: f.Name, Reason: "is required"}
		}

		switch f.Kind {
		case KindNumber:
			if trimmed == "" {
				continue
			}
			n, err := strconv.ParseFloat(trimmed, 64)
			if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
				return nil, &model.ValidationError{Field: f.Name, Reason: "must be a number"}
			}
			fields[f.Name] = n
		default:
			fields[f.Name] = raw
		}
	}
	return fields, nil
}

// draftFrom renders stored values of the schema's fields as text. Text left
// in a number field by older writers is shown as is, so submitting it again
// fails validation instead of writing zero.
func (s Schema) draftFrom(stored model.Fields) map[string]string {
	draft := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		v, ok := stored[f.Name]
		if !ok || v == nil {
			continue
		}
		switch f.Kind {
		case KindNumber:
			if str, ok := v.(string); ok {
				draft[f.Name] = str
				continue
			}
			draft[f.Name] = strconv.FormatFloat(model.NumberField(stored, f.Name), 'f', -1, 64)
		default:
			if str, ok := v.(string); ok {
				draft[f.Name] = str
			} else {
				draft[f.Name] = fmt.Sprint(v)
			}
		}
	}
	return draft
}
