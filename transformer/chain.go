package transformer

import (
	"github.com/vocabstream/vocabstream/log"
	"github.com/vocabstream/vocabstream/message"
	"github.com/vocabstream/vocabstream/stage"
)

// Stage is a named Transformer within a Chain.
type Stage struct {
	Name        string
	Transformer Transformer
}

// Chain applies its stages in declared order.
type Chain []Stage

// Apply runs e through every stage and reports the outcome. The first stage
// receives a copy of e, so e itself is never modified. A stage that filters
// or fails ends the chain for that entry; when a stage both returns a
// filtered entry and an error, the entry counts as filtered.
func (c Chain) Apply(e *message.Entry) message.Result {
	cur := e.Copy()
	for _, s := range c {
		out, err := s.Transformer.Apply(cur)
		if out != nil && out.Filtered {
			log.With("transformer", s.Name).With("entry", e.ID).Debugln("entry filtered")
			return message.Result{Entry: out, Status: message.Filtered}
		}
		if err != nil {
			return message.Result{Entry: cur, Status: message.Failure, Err: stage.Wrap("transformer:"+s.Name, e.ID, err)}
		}
		if out == nil {
			log.With("transformer", s.Name).With("entry", e.ID).Debugln("entry skipped")
			return message.Result{Entry: cur, Status: message.Filtered}
		}
		if out.ID == "" {
			out.ID = e.ID
		}
		cur = out
	}
	return message.Result{Entry: cur, Status: message.Success}
}
