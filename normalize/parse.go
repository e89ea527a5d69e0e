package normalize

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// Mode selects the parser used on the raw markup.
type Mode string

// Supported parse modes.
const (
	XML  Mode = "xml"
	HTML Mode = "html"
)

// Parse parses b with the parser selected by mode.
func Parse(b []byte, mode Mode) (*Node, error) {
	switch mode {
	case XML, "":
		return ParseXML(b)
	case HTML:
		return ParseHTML(b)
	}
	return nil, fmt.Errorf("unknown parse mode %q", mode)
}

// ParseXML parses b as XML without enforcing well-formedness. Mismatched end
// tags close the nearest matching open element or are dropped, elements left
// open at the end of input are closed, and a syntax error ends the document.
// Namespace declarations are not kept as attributes. Element names such as
// link or meta get no HTML void treatment here, ParseHTML is the mode for
// markup written that way.
func ParseXML(b []byte) (*Node, error) {
	d := xml.NewDecoder(bytes.NewReader(b))
	d.Strict = false
	d.Entity = xml.HTMLEntity
	d.CharsetReader = charset.NewReaderLabel

	var (
		root  *Node
		stack []*Node
	)
	for {
		tok, err := d.RawToken()
		if err != nil {
			// io.EOF or a syntax error, either way keep what was built
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Tag: qualified(t.Name)}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
					continue
				}
				n.Attrs = append(n.Attrs, Attr{Name: qualified(a.Name), Value: a.Value})
			}
			if len(stack) == 0 {
				if root != nil {
					return root, nil
				}
				root = n
			} else {
				top := stack[len(stack)-1]
				top.Children = append(top.Children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			name := qualified(t.Name)
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].Tag == name {
					stack = stack[:i]
					break
				}
			}
			if root != nil && len(stack) == 0 {
				return root, nil
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].appendText(string(t))
			}
		}
	}
	if root == nil {
		return nil, ErrNoRoot
	}
	return root, nil
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// ParseHTML parses b with the HTML5 parsing algorithm as the content of a
// <body> element and returns the first top-level element. Tag and attribute
// names are lower cased by the parser.
func ParseHTML(b []byte) (*Node, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(bytes.NewReader(b), body)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			return fromHTML(n), nil
		}
	}
	return nil, ErrNoRoot
}

func fromHTML(h *html.Node) *Node {
	n := &Node{Tag: h.Data}
	for _, a := range h.Attr {
		name := a.Key
		if a.Namespace != "" {
			name = a.Namespace + ":" + a.Key
		}
		n.Attrs = append(n.Attrs, Attr{Name: name, Value: a.Val})
	}
	var text strings.Builder
	for c := h.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			if len(n.Children) == 0 {
				text.WriteString(c.Data)
			}
		case html.ElementNode:
			n.Children = append(n.Children, fromHTML(c))
		}
	}
	n.Text = text.String()
	return n
}
