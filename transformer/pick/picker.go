// Package pick keeps only the listed fields of mapping entries.
package pick

import (
	"github.com/vocabstream/vocabstream/log"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/message/data"
	"github.com/vocabstream/vocabstream/transformer"
)

var (
	_ transformer.Transformer = &picker{}
)

func init() {
	transformer.Add(
		"pick",
		func() transformer.Transformer {
			return &picker{}
		},
	)
}

type picker struct {
	Fields []string `json:"fields" validate:"required,min=1"`
}

func (p *picker) Description() string {
	return "keeps only the listed top-level fields"
}

func (p *picker) SampleConfig() string {
	return "fields: [id, name, country]\n"
}

func (p *picker) Apply(e *message.Entry) (*message.Entry, error) {
	d, ok := e.Map()
	if !ok {
		return nil, transformer.NotAMappingError{ID: e.ID, Data: e.Data}
	}
	log.With("entry", e.ID).Debugln("picking...")
	plucked := data.Data{}
	for _, k := range p.Fields {
		if v, ok := d.Has(k); ok {
			plucked[k] = v
		}
	}
	return message.New(e.ID, plucked), nil
}
