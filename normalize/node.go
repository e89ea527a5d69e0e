package normalize

import "errors"

// ErrNoRoot is returned when a document does not contain a single element.
var ErrNoRoot = errors.New("no root element found")

// Attr is a single attribute of a Node.
type Attr struct {
	Name  string
	Value string
}

// Node is one element of a parsed document. Text is the element's own text,
// the character data that precedes its first child element.
type Node struct {
	Tag      string
	Attrs    []Attr
	Text     string
	Children []*Node
}

func (n *Node) appendText(s string) {
	if len(n.Children) == 0 {
		n.Text += s
	}
}
