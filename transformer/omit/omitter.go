// Package omit removes the listed fields of mapping entries.
package omit

import (
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/transformer"
)

func init() {
	transformer.Add(
		"omit",
		func() transformer.Transformer {
			return &Omitter{}
		},
	)
}

// Omitter deletes Fields from the entry.
type Omitter struct {
	Fields []string `json:"fields" validate:"required,min=1"`
}

func (o *Omitter) Description() string {
	return "removes the listed top-level fields"
}

func (o *Omitter) SampleConfig() string {
	return "fields: [\"@xmlns\", links]\n"
}

func (o *Omitter) Apply(e *message.Entry) (*message.Entry, error) {
	d, ok := e.Map()
	if !ok {
		return nil, transformer.NotAMappingError{ID: e.ID, Data: e.Data}
	}
	for _, k := range o.Fields {
		d.Delete(k)
	}
	return e, nil
}
