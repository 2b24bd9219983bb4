package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// CollectionProducts holds catalog items.
const CollectionProducts = "products"

// CatalogItem is a product offered in the catalog.
type CatalogItem struct {
	Key         string
	Name        string
	Category    string
	Price       float64
	Unit        string
	Stock       float64
	ImageURL    string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DecodeCatalogItem converts a stored document into a CatalogItem. Missing
// fields decode to zero values.
func DecodeCatalogItem(doc Document) (CatalogItem, error) {
	f := doc.Fields
	return CatalogItem{
		Key:         doc.Key,
		Name:        f.String("name"),
		Category:    f.String("category"),
		Price:       NumberField(f, "price"),
		Unit:        f.String("unit"),
		Stock:       NumberField(f, "stock"),
		ImageURL:    f.String("imageUrl"),
		Description: f.String("description"),
		CreatedAt:   TimeField(f, FieldCreatedAt),
		UpdatedAt:   TimeField(f, FieldUpdatedAt),
	}, nil
}

// NumberField reads a numeric field. Numeric strings are accepted because
// older writers stored prices as text.
func NumberField(f Fields, name string) float64 {
	switch v := f[name].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		n, _ := v.Float64()
		return n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
