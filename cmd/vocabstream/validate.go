package main

import (
	"fmt"

	"github.com/vocabstream/vocabstream/pipeline"
)

func runValidate(args []string) error {
	flagset := baseFlagSet("validate")
	flagset.Usage = usageFor(flagset, "vocabstream validate [flags] <pipeline>")
	if err := flagset.Parse(args); err != nil {
		return err
	}

	args = flagset.Args()
	if len(args) <= 0 {
		args = []string{defaultPipelineFile}
	}

	cfg, err := pipeline.LoadConfig(args[0])
	if err != nil {
		return err
	}
	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}
	fmt.Println(p)
	fmt.Println("OK")
	return nil
}
