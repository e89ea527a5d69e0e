package main

import (
	"fmt"
	"strings"

	"github.com/vocabstream/vocabstream/adaptor"
	"github.com/vocabstream/vocabstream/pipeline"
)

func runAbout(args []string) error {
	flagset := baseFlagSet("about")
	flagset.Usage = usageFor(flagset, "vocabstream about [flags] <reader|transformer|writer> <type>")
	if err := flagset.Parse(args); err != nil {
		return err
	}

	args = flagset.Args()
	if len(args) < 2 {
		flagset.Usage()
		return fmt.Errorf("missing plugin kind and type")
	}

	text, err := about(pipeline.DefaultRegistry(), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Print(text)
	return nil
}

// about renders the description and sample config of a plugin.
func about(reg pipeline.Registry, kind, name string) (string, error) {
	var (
		plugin interface{}
		ok     bool
	)
	switch kind {
	case "reader":
		plugin, ok = lookup(reg.Readers.Plugins(), name)
	case "transformer":
		plugin, ok = lookup(reg.Transformers.Plugins(), name)
	case "writer":
		plugin, ok = lookup(reg.Writers.Plugins(), name)
	default:
		return "", fmt.Errorf("unknown kind '%s'", kind)
	}
	if !ok {
		return "", adaptor.ErrNotFound{Kind: kind, Name: name}
	}

	var b strings.Builder
	d, ok := plugin.(adaptor.Describable)
	if !ok {
		fmt.Fprintf(&b, "%s %s\n", kind, name)
		return b.String(), nil
	}
	fmt.Fprintf(&b, "%s %s - %s\n\n", kind, name, d.Description())
	fmt.Fprintf(&b, "- type: %s\n  args:\n", name)
	for _, line := range strings.Split(strings.TrimRight(d.SampleConfig(), "\n"), "\n") {
		fmt.Fprintf(&b, "    %s\n", line)
	}
	return b.String(), nil
}

func lookup[T any](m map[string]T, name string) (interface{}, bool) {
	p, ok := m[name]
	return p, ok
}
