package handler

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dtroode/easygrocer/internal/model"
)

// EncodeSnapshot converts a snapshot into its wire form. Times become
// RFC 3339 strings.
func EncodeSnapshot(snap model.Snapshot) (*structpb.Struct, error) {
	docs := make([]interface{}, 0, len(snap.Documents))
	for _, d := range snap.Documents {
		docs = append(docs, map[string]interface{}{
			"key":    d.Key,
			"fields": wireValue(d.Fields),
		})
	}

	msg, err := structpb.NewStruct(map[string]interface{}{
		"collection": snap.Collection,
		"documents":  docs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return msg, nil
}

// DecodeSnapshot is the inverse of EncodeSnapshot. Numbers come back as
// float64 and times as strings, which model.TimeField accepts.
func DecodeSnapshot(msg *structpb.Struct) (model.Snapshot, error) {
	raw := msg.AsMap()

	collection, _ := raw["collection"].(string)
	snap := model.Snapshot{Collection: collection, Documents: []model.Document{}}

	docs, _ := raw["documents"].([]interface{})
	for i, d := range docs {
		entry, ok := d.(map[string]interface{})
		if !ok {
			return model.Snapshot{}, fmt.Errorf("document %d is not an object", i)
		}
		key, _ := entry["key"].(string)
		fields, _ := entry["fields"].(map[string]interface{})
		snap.Documents = append(snap.Documents, model.Document{Key: key, Fields: model.Fields(fields)})
	}

	return snap, nil
}

func wireValue(v interface{}) interface{} {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case model.Fields:
		return wireValue(map[string]interface{}(x))
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = wireValue(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = wireValue(e)
		}
		return out
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return x.String()
		}
		return f
	case nil, bool, string, float64, float32, int, int32, int64, uint, uint32, uint64:
		return x
	default:
		return fmt.Sprint(x)
	}
}
