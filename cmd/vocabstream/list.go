package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"

	"github.com/vocabstream/vocabstream/adaptor"
	"github.com/vocabstream/vocabstream/jobs"
	"github.com/vocabstream/vocabstream/pipeline"
)

var kinds = []string{"reader", "transformer", "writer", "job"}

func runList(args []string) error {
	flagset := baseFlagSet("list")
	flagset.Usage = usageFor(flagset, "vocabstream list [flags] [reader|transformer|writer|job]")
	if err := flagset.Parse(args); err != nil {
		return err
	}

	filter := ""
	if args = flagset.Args(); len(args) > 0 {
		filter = args[0]
	}
	rows, err := pluginRows(pipeline.DefaultRegistry(), jobs.Default, filter)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"kind", "type", "description"})
	table.AppendBulk(rows)
	table.Render()
	return nil
}

// pluginRows lists kind, type and description of every plugin, or of those
// of one kind.
func pluginRows(reg pipeline.Registry, jr *jobs.Registry, kind string) ([][]string, error) {
	if kind != "" {
		found := false
		for _, k := range kinds {
			found = found || k == kind
		}
		if !found {
			return nil, fmt.Errorf("unknown kind '%s', expected one of %v", kind, kinds)
		}
	}

	var rows [][]string
	add := func(k string, plugins map[string]interface{}) {
		if kind != "" && kind != k {
			return
		}
		names := make([]string, 0, len(plugins))
		for name := range plugins {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			desc := ""
			if d, ok := plugins[name].(adaptor.Describable); ok {
				desc = d.Description()
			}
			rows = append(rows, []string{k, name, desc})
		}
	}
	add("reader", toAny(reg.Readers.Plugins()))
	add("transformer", toAny(reg.Transformers.Plugins()))
	add("writer", toAny(reg.Writers.Plugins()))
	if kind == "" || kind == "job" {
		for _, t := range jr.Types() {
			rows = append(rows, []string{"job", t.ID, t.Description})
		}
	}
	return rows, nil
}

func toAny[T any](m map[string]T) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
