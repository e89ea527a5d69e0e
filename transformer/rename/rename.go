// Package rename renames fields of mapping entries.
package rename

import (
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/transformer"
)

var (
	_ transformer.Transformer = &Rename{}
)

func init() {
	transformer.Add(
		"rename",
		func() transformer.Transformer {
			return &Rename{}
		},
	)
}

// Rename swaps out the field names based on the provided config
type Rename struct {
	SwapMap map[string]string `json:"field_map" validate:"required,min=1"`
}

func (r *Rename) Description() string {
	return "renames top-level fields according to field_map"
}

func (r *Rename) SampleConfig() string {
	return "field_map:\n  \"#text\": name\n  \"@id\": id\n"
}

func (r *Rename) Apply(e *message.Entry) (*message.Entry, error) {
	d, ok := e.Map()
	if !ok {
		return nil, transformer.NotAMappingError{ID: e.ID, Data: e.Data}
	}
	for oldName, newName := range r.SwapMap {
		if val, ok := d.Has(oldName); ok {
			d.Delete(oldName)
			d.Set(newName, val)
		}
	}
	return e, nil
}
