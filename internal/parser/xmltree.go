// Package parser decodes draw.io diagram containers into the canonical
// mxGraphModel element tree. Input is treated as untrusted: document type
// declarations are rejected, entities other than the XML built-ins are never
// expanded, and nesting and decompressed sizes are bounded.
package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// maxDepth bounds element nesting of a parsed document.
const maxDepth = 512

var (
	// ErrDoctype is returned for documents carrying a DOCTYPE or other
	// markup declaration.
	ErrDoctype = errors.New("markup declarations are not allowed")
	// ErrNoRoot is returned for documents without a root element.
	ErrNoRoot = errors.New("document has no root element")
)

// Element is a parsed XML element. Namespaces are dropped; Text holds the
// concatenated character data directly inside the element.
type Element struct {
	Name     string
	Attrs    []xml.Attr
	Children []*Element
	Text     string
}

// Attr returns the value of the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrOr returns the named attribute or def when it is absent.
func (e *Element) AttrOr(name, def string) string {
	if v, ok := e.Attr(name); ok {
		return v
	}
	return def
}

// FirstChild returns the first child element, or nil.
func (e *Element) FirstChild() *Element {
	if len(e.Children) == 0 {
		return nil
	}
	return e.Children[0]
}

// Child returns the first child element with the given name, or nil.
func (e *Element) Child(name string) *Element {
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Find returns the first descendant in document order whose name matches
// name case-insensitively, or nil.
func (e *Element) Find(name string) *Element {
	for _, c := range e.Children {
		if strings.EqualFold(c.Name, name) {
			return c
		}
		if d := c.Find(name); d != nil {
			return d
		}
	}
	return nil
}

// String serializes the element back to XML. Attribute order and character
// data are preserved, so parsing the output yields an equal tree.
func (e *Element) String() string {
	var b strings.Builder
	e.write(&b)
	return b.String()
}

func (e *Element) write(b *strings.Builder) {
	b.WriteByte('<')
	b.WriteString(e.Name)
	for _, a := range e.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Name.Local)
		b.WriteString(`="`)
		xml.EscapeText(b, []byte(a.Value))
		b.WriteByte('"')
	}
	if len(e.Children) == 0 && e.Text == "" {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	xml.EscapeText(b, []byte(e.Text))
	for _, c := range e.Children {
		c.write(b)
	}
	b.WriteString("</")
	b.WriteString(e.Name)
	b.WriteByte('>')
}

// ParseXML parses a single XML document into an element tree.
func ParseXML(r io.Reader) (*Element, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true
	dec.CharsetReader = charset.NewReaderLabel

	type frame struct {
		el   *Element
		text strings.Builder
	}
	var (
		root  *Element
		stack []*frame
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.Directive:
			return nil, ErrDoctype
		case xml.StartElement:
			if len(stack) >= maxDepth {
				return nil, fmt.Errorf("element nesting exceeds %d levels", maxDepth)
			}
			if root != nil && len(stack) == 0 {
				return nil, errors.New("document has more than one root element")
			}
			el := &Element{Name: t.Name.Local}
			if len(t.Attr) > 0 {
				el.Attrs = make([]xml.Attr, 0, len(t.Attr))
				for _, a := range t.Attr {
					el.Attrs = append(el.Attrs, xml.Attr{Name: xml.Name{Local: a.Name.Local}, Value: a.Value})
				}
			}
			if len(stack) == 0 {
				root = el
			} else {
				parent := stack[len(stack)-1].el
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, &frame{el: el})
		case xml.EndElement:
			top := stack[len(stack)-1]
			top.el.Text = top.text.String()
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, ErrNoRoot
	}
	return root, nil
}

// ParseXMLString parses an XML document held in a string.
func ParseXMLString(s string) (*Element, error) {
	return ParseXML(strings.NewReader(s))
}
