package normalize

import (
	"strings"

	"github.com/vocabstream/vocabstream/message/data"
)

const (
	attrPrefix = "@"
	textKey    = "#text"
)

// Normalize returns the canonical mapping {n.Tag: value} for the tree rooted at n.
func Normalize(n *Node) data.Data {
	return data.Data{n.Tag: value(n)}
}

// Document parses b with mode and normalizes the result.
func Document(b []byte, mode Mode) (data.Data, error) {
	root, err := Parse(b, mode)
	if err != nil {
		return nil, err
	}
	return Normalize(root), nil
}

// value returns nil, a string or a data.Data.
func value(n *Node) interface{} {
	var m data.Data
	if len(n.Attrs) > 0 {
		m = data.Data{}
	}

	if len(n.Children) > 0 {
		m = data.Data{}
		var order []string
		groups := make(map[string][]interface{})
		for _, c := range n.Children {
			if _, seen := groups[c.Tag]; !seen {
				order = append(order, c.Tag)
			}
			groups[c.Tag] = append(groups[c.Tag], value(c))
		}
		for _, tag := range order {
			if vals := groups[tag]; len(vals) == 1 {
				m[tag] = vals[0]
			} else {
				m[tag] = vals
			}
		}
	}

	for _, a := range n.Attrs {
		m[attrPrefix+a.Name] = a.Value
	}

	if text := strings.TrimSpace(n.Text); text != "" {
		if m == nil {
			return text
		}
		m[textKey] = text
	}

	if m == nil {
		return nil
	}
	return m
}
