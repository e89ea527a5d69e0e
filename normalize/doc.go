// Copyright 2014 The Transporter Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package normalize turns a markup document into a canonical nested mapping.

A document is first parsed leniently into a Node tree, then Normalize walks
the tree:

	<r><i>1</i><i>2</i></r>         => {"r": {"i": ["1", "2"]}}
	<a x="1">hello</a>              => {"a": {"@x": "1", "#text": "hello"}}
	<a>hello</a>                    => {"a": "hello"}
	<a>   </a>                      => {"a": nil}
	<a x="1"/>                      => {"a": {"@x": "1"}}

Attributes are stored under "@name", the text of a node that also has
attributes or children under "#text". A tag that repeats under the same
parent becomes a list in document order, a single occurrence does not.

Parse errors never surface: the parsers close whatever is left open and
return the tree built so far. Only a document with no element at all is an
error.
*/
package normalize
