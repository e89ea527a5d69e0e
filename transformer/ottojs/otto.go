// Package ottojs runs a JavaScript module.exports function with otto.
package ottojs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/compose/mejson"
	"github.com/robertkrimen/otto"

	_ "github.com/robertkrimen/otto/underscore" // enable underscore

	"github.com/vocabstream/vocabstream/log"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/message/data"
	"github.com/vocabstream/vocabstream/stage"
	"github.com/vocabstream/vocabstream/transformer"
)

var (
	_ transformer.Transformer = &Otto{}

	// ErrEmptyFilename will be returned when the profided filename is empty.
	ErrEmptyFilename = errors.New("no filename specified")
)

func init() {
	transformer.Add(
		"otto",
		func() transformer.Transformer {
			return &Otto{}
		},
	)
}

// Otto runs the function assigned to module.exports against each entry.
// Returning false from the function filters the entry.
type Otto struct {
	Filename string `json:"filename"`
	vm       *otto.Otto
}

func (o *Otto) Description() string {
	return "runs each entry through a JavaScript module.exports function, underscore is available"
}

func (o *Otto) SampleConfig() string {
	return `filename: transform.js
# module.exports = function(doc) {
#   if (!_.has(doc.data, "id")) { return false }
#   return doc
# }
`
}

func (o *Otto) Validate() error {
	if o.Filename == "" {
		return ErrEmptyFilename
	}
	return nil
}

func (o *Otto) Apply(e *message.Entry) (*message.Entry, error) {
	if o.vm == nil {
		if err := o.initVM(); err != nil {
			o.vm = nil
			return nil, stage.Fatal(err)
		}
	}
	return o.transformOne(e)
}

func (o *Otto) initVM() error {
	o.vm = otto.New()

	fn, err := extractFunction(o.Filename)
	if err != nil {
		return err
	}

	// set up the vm environment, make `module = {}`
	if _, err := o.vm.Run(`module = {}`); err != nil {
		return err
	}

	script, err := o.vm.Compile(o.Filename, fn)
	if err != nil {
		return err
	}

	_, err = o.vm.Run(script)
	return err
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

func (o *Otto) transformOne(e *message.Entry) (*message.Entry, error) {
	var (
		value, outDoc otto.Value
		result, doc   interface{}
		err           error
	)

	d, ok := e.Map()
	if !ok {
		return nil, transformer.NotAMappingError{ID: e.ID, Data: e.Data}
	}

	now := time.Now()
	doc, err = mejson.Marshal(data.Plain(d.AsMap()))
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(map[string]interface{}{"id": e.ID, "data": doc})
	if err != nil {
		return nil, err
	}
	// a native object, so the script can delete and enumerate keys
	obj, err := o.vm.Object("(" + string(b) + ")")
	if err != nil {
		return nil, err
	}
	value = obj.Value()

	beforeVM := time.Now()
	if outDoc, err = o.vm.Call(`module.exports`, nil, value); err != nil {
		return nil, err
	}

	if result, err = outDoc.Export(); err != nil {
		return nil, err
	}
	afterVM := time.Now()
	out, err := toEntry(e, result)
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

func toEntry(orig *message.Entry, incoming interface{}) (*message.Entry, error) {
	var m data.Data
	switch newMsg := incoming.(type) {
	case map[string]interface{}:
		m = data.Data(newMsg)
	case data.Data:
		m = newMsg
	case bool: // skip this doc if we're a bool and we're false
		if !newMsg {
			return transformer.Filter(orig), nil
		}
		return orig, nil
	default:
		return nil, fmt.Errorf("returned doc was not a map[string]interface{}: was %T", newMsg)
	}

	id := orig.ID
	if s, ok := m.Get("id").(string); ok && s != "" {
		id = s
	}

	newData := m.Get("data")
	if v, ok := newData.(otto.Value); ok {
		exported, err := v.Export()
		if err != nil {
			return nil, err
		}
		newData = exported
	}
	switch nd := newData.(type) {
	case map[string]interface{}:
		resolved, err := resolveValues(nd)
		if err != nil {
			return nil, err
		}
		d, err := mejson.Unmarshal(resolved)
		if err != nil {
			return nil, err
		}
		return message.New(id, data.Data(d)), nil
	case data.Data:
		resolved, err := resolveValues(nd)
		if err != nil {
			return nil, err
		}
		return message.New(id, data.Data(resolved)), nil
	default:
		return nil, fmt.Errorf("bad type for data: %T", nd)
	}
}

func resolveValues(m map[string]interface{}) (map[string]interface{}, error) {
	for k, v := range m {
		if ov, ok := v.(otto.Value); ok {
			val, err := ov.Export()
			if err != nil {
				return nil, err
			}
			m[k] = val
		}
	}
	return m, nil
}
