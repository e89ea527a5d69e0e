// Package gojajs runs a JavaScript transform(doc) function with goja.
package gojajs

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/compose/mejson"
	"github.com/dop251/goja"

	"github.com/vocabstream/vocabstream/log"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/message/data"
	"github.com/vocabstream/vocabstream/stage"
	"github.com/vocabstream/vocabstream/transformer"
)

var (
	_ transformer.Transformer = &Goja{}

	// ErrInvalidMessageType is a generic error returned when the `data` property returned in the document from
	// the JS function was not of type map[string]interface{}
	ErrInvalidMessageType = errors.New("returned document was not a map")

	// ErrEmptyFilename will be returned when the profided filename is empty.
	ErrEmptyFilename = errors.New("no filename specified")

	// ErrNoTransform is returned when the script does not define transform.
	ErrNoTransform = errors.New("script does not define a transform function")
)

func init() {
	transformer.Add(
		"goja",
		func() transformer.Transformer {
			return &Goja{}
		},
	)
	transformer.Add(
		"js",
		func() transformer.Transformer {
			return &Goja{}
		},
	)
}

// Goja holds the script and the VM it runs in. A VM is not safe for
// concurrent use, entries are transformed one at a time.
type Goja struct {
	Filename string `json:"filename"`
	vm       *goja.Runtime
	fn       JSFunc
}

// JSFunc defines the structure a transformer function.
type JSFunc func(map[string]interface{}) *goja.Object

func (g *Goja) Description() string {
	return "runs each entry through a JavaScript transform(doc) function"
}

func (g *Goja) SampleConfig() string {
	return `filename: transform.js
# function transform(doc) {
#   doc["data"]["country"] = doc["data"]["country"].toUpperCase()
#   if (doc["data"]["status"] !== "active") { doc["skip"] = true }
#   return doc
# }
`
}

// Validate checks that a script was configured.
func (g *Goja) Validate() error {
	if g.Filename == "" {
		return ErrEmptyFilename
	}
	return nil
}

// Apply fulfills the transformer.Transformer interface by transforming the incoming entry with the configured
// JavaScript function. A script that cannot be loaded is fatal.
func (g *Goja) Apply(e *message.Entry) (*message.Entry, error) {
	if g.vm == nil {
		if err := g.initVM(); err != nil {
			g.vm = nil
			return nil, stage.Fatal(err)
		}
	}
	return g.transformOne(e)
}

func (g *Goja) initVM() error {
	g.vm = goja.New()

	fn, err := extractFunction(g.Filename)
	if err != nil {
		return err
	}
	if _, err = g.vm.RunString(fn); err != nil {
		return err
	}
	transform := g.vm.Get("transform")
	if transform == nil || goja.IsUndefined(transform) {
		return ErrNoTransform
	}
	return g.vm.ExportTo(transform, &g.fn)
}

func extractFunction(filename string) (string, error) {
	if filename == "" {
		return "", ErrEmptyFilename
	}

	ba, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}

	return string(ba), nil
}

func (g *Goja) transformOne(e *message.Entry) (out *message.Entry, err error) {
	d, ok := e.Map()
	if !ok {
		return nil, transformer.NotAMappingError{ID: e.ID, Data: e.Data}
	}

	now := time.Now()
	doc, err := mejson.Marshal(data.Plain(d.AsMap()))
	if err != nil {
		return nil, err
	}
	currMsg := map[string]interface{}{"id": e.ID, "data": doc, "skip": false}

	defer func() {
		// exceptions thrown by the script surface as panics
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("transform failed, %v", r)
		}
	}()

	beforeVM := time.Now()
	outDoc := g.fn(currMsg)

	var res map[string]interface{}
	if err := g.vm.ExportTo(outDoc, &res); err != nil {
		return nil, err
	}
	afterVM := time.Now()
	out, err = toEntry(e, res)
	if err != nil {
		return nil, err
	}
	then := time.Now()
	log.With("transformed_in_micro", then.Sub(now).Microseconds()).
		With("marshaled_in_micro", beforeVM.Sub(now).Microseconds()).
		With("vm_time_in_micro", afterVM.Sub(beforeVM).Microseconds()).
		With("unmarshaled_in_micro", then.Sub(afterVM).Microseconds()).
		Debugln("document transformed")

	return out, nil
}

func toEntry(orig *message.Entry, incoming map[string]interface{}) (*message.Entry, error) {
	m := data.Data(incoming)
	if skip, _ := m.Get("skip").(bool); skip {
		return transformer.Filter(orig), nil
	}
	id := orig.ID
	if s, ok := m.Get("id").(string); ok && s != "" {
		id = s
	}
	switch newData := m.Get("data").(type) {
	case map[string]interface{}:
		d, err := mejson.Unmarshal(newData)
		if err != nil {
			return nil, err
		}
		return message.New(id, data.Data(d)), nil
	default:
		return nil, ErrInvalidMessageType
	}
}
