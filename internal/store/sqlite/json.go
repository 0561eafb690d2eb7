package sqlite

import (
	"encoding/json"
	"fmt"
)

// encodeJSON marshals v to a string for storage in a TEXT column. SQLite has
// no native map/slice type, so structured fields ride along as JSON the way
// the teacher's condition_group_store.go stores its member list.
func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("sqlite: marshal json: %w", err)
	}
	return string(b), nil
}

func decodeJSON(s string, out any) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), out); err != nil {
		return fmt.Errorf("sqlite: unmarshal json: %w", err)
	}
	return nil
}

// encodeEmbedding packs a float32 embedding as a compact JSON array. Models
// in this corpus are small (hundreds of dims), so a dedicated binary codec
// isn't worth the complexity.
func encodeEmbedding(v []float32) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("sqlite: marshal embedding: %w", err)
	}
	return b, nil
}

func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var v []float32
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal embedding: %w", err)
	}
	return v, nil
}
