package cache

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/vatomsync/internal/shared/payload"
)

// ErrNotFound is returned by Read when no snapshot exists for a key
var ErrNotFound = errors.New("snapshot not found")

// Store reads and writes region snapshots
type Store interface {
	Read(key string) ([]Record, error)
	Write(key string, records []Record) error
	Delete(key string) error
}

// Record is one persisted data object
type Record struct {
	ID   string
	Type string
	Data payload.Value
}

// MarshalJSON encodes the record as [id, type, data]
func (r Record) MarshalJSON() ([]byte, error) {
	return sonic.Marshal([]any{r.ID, r.Type, r.Data})
}

// UnmarshalJSON decodes an [id, type, data] triple
func (r *Record) UnmarshalJSON(data []byte) error {
	v, err := payload.Parse(data)
	if err != nil {
		return err
	}
	items := v.Items()
	if v.Kind() != payload.KindArray || len(items) != 3 {
		return fmt.Errorf("invalid snapshot record: expected 3-element array, got %s", v.Kind())
	}

	id, ok := items[0].AsString()
	if !ok || id == "" {
		return fmt.Errorf("invalid snapshot record: missing id")
	}
	typ, _ := items[1].AsString()

	*r = Record{ID: id, Type: typ, Data: items[2]}
	return nil
}

// Stats summarizes a store
type Stats struct {
	Snapshots int   `json:"snapshots"`
	Records   int   `json:"records"`
	Bytes     int64 `json:"bytes"`
}
