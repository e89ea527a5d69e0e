package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/vocabstream/vocabstream/log"

	_ "github.com/vocabstream/vocabstream/reader/all"
	_ "github.com/vocabstream/vocabstream/transformer/all"
	_ "github.com/vocabstream/vocabstream/writer/all"
)

const (
	defaultPipelineFile = "datastream.yaml"
	defaultScheduleFile = "schedule.yaml"
)

var version = "dev"

func usage() {
	fmt.Fprintf(os.Stderr, "USAGE\n")
	fmt.Fprintf(os.Stderr, "  %s <mode> [flags]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "MODES\n")
	fmt.Fprintf(os.Stderr, "  run       Run a datastream\n")
	fmt.Fprintf(os.Stderr, "  validate  Validate a datastream config\n")
	fmt.Fprintf(os.Stderr, "  list      List the available readers, transformers, writers and jobs\n")
	fmt.Fprintf(os.Stderr, "  about     Show the description and sample config of a plugin\n")
	fmt.Fprintf(os.Stderr, "  schedule  Run jobs on their schedules\n")
	fmt.Fprintf(os.Stderr, "  version   Print the version\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "VERSION\n")
	fmt.Fprintf(os.Stderr, "  %s\n", version)
	fmt.Fprintf(os.Stderr, "\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var run func([]string) error
	switch strings.ToLower(os.Args[1]) {
	case "run":
		run = runRun
	case "validate":
		run = runValidate
	case "list":
		run = runList
	case "about":
		run = runAbout
	case "schedule":
		run = runSchedule
	case "version":
		fmt.Println(version)
		os.Exit(0)
	default:
		usage()
		os.Exit(1)
	}

	if err := run(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func baseFlagSet(name string) *flag.FlagSet {
	flagset := flag.NewFlagSet(name, flag.ExitOnError)
	log.AddFlags(flagset)
	return flagset
}

func usageFor(fs *flag.FlagSet, short string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "USAGE\n")
		fmt.Fprintf(os.Stderr, "  %s\n", short)
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		w := tabwriter.NewWriter(os.Stderr, 0, 2, 2, ' ', 0)
		fs.VisitAll(func(f *flag.Flag) {
			def := f.DefValue
			if def == "" {
				def = "..."
			}
			fmt.Fprintf(w, "\t-%s %s\t%s\n", f.Name, def, f.Usage)
		})
		w.Flush()
		fmt.Fprintf(os.Stderr, "\n")
	}
}
