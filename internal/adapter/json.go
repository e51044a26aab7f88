package adapter

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/andresuchdata/netplan/internal/domain"
)

// DecodeJSON reads an Input document. Numbers are kept as json.Number so the
// builder coerces them exactly once.
func DecodeJSON(r io.Reader) (*domain.Input, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var in domain.Input
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("failed to decode input JSON: %w", err)
	}
	return &in, nil
}
