// Package codec converts secrets to and from the string stored in the
// key-value store.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"burn.note/internal/models"
)

var ErrCorruptPayload = errors.New("corrupt secret payload")

type payload struct {
	Content *string     `json:"content"`
	Kind    models.Kind `json:"type"`
}

func Encode(content string, kind models.Kind) (string, error) {
	data, err := json.Marshal(payload{Content: &content, Kind: kind})
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(data), nil
}

// Decode rejects anything Encode could not have produced.
func Decode(s string) (string, models.Kind, error) {
	var p payload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrCorruptPayload, err)
	}
	if p.Content == nil {
		return "", "", fmt.Errorf("%w: missing content", ErrCorruptPayload)
	}
	if !p.Kind.Valid() {
		return "", "", fmt.Errorf("%w: unknown type %q", ErrCorruptPayload, p.Kind)
	}
	return *p.Content, p.Kind, nil
}
