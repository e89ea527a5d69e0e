// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline runs a datastream: a chain of readers produces entries,
// each entry goes through the transformer chain and every transformed entry
// is handed to all the writers.
//
// A pipeline is described by a Config:
//
//   readers:
//     - type: http
//       args: {origin: "https://example.org/dump.zip"}
//     - type: zip
//       args: {regex: "\\.json$"}
//     - type: json
//   transformers:
//     - type: pick
//       args: {fields: [id, name]}
//   writers:
//     - type: async
//       args:
//         writer: {type: file, args: {uri: "stdout://"}}
//
// and is run once:
//
//   cfg, err := pipeline.LoadConfig("datastream.yaml")
//   if err != nil {
//     fmt.Println(err)
//     os.Exit(1)
//   }
//   p, err := pipeline.New(cfg)
//   if err != nil {
//     fmt.Println(err)
//     os.Exit(1)
//   }
//   result, err := p.Run(ctx)
//
// New resolves every type identifier through the registries and validates
// the args without performing any I/O. Per-entry failures are counted in the
// Result and the run goes on, only fatal errors abort it.
package pipeline
