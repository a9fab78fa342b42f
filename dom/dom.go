// Package dom is a small mutable element model of the host page. Markup is
// parsed once with goquery; selectors run against the parsed tree while the
// state the picker and menu mutate (classes, inline style, text) lives on Element.
package dom

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is a parsed host page.
type Document struct {
	doc      *goquery.Document
	root     *Element
	elements map[*html.Node]*Element
}

// Element is one element of the host page. Tree shape is fixed after Parse;
// attributes, classes, style and text are safe for concurrent use.
type Element struct {
	Tag      string
	parent   *Element
	children []*Element

	mu         sync.RWMutex
	attrs      map[string]string
	classes    []string
	style      map[string]string
	styleOrder []string
	text       string
}

// Parse reads host page markup.
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse host page: %w", err)
	}

	d := &Document{doc: doc, elements: make(map[*html.Node]*Element)}
	for _, n := range doc.Nodes {
		d.root = d.build(n, nil)
	}
	return d, nil
}

// ParseString parses markup held in a string.
func ParseString(markup string) (*Document, error) {
	return Parse(strings.NewReader(markup))
}

func (d *Document) build(n *html.Node, parent *Element) *Element {
	el := &Element{
		Tag:    n.Data,
		parent: parent,
		attrs:  make(map[string]string),
		style:  make(map[string]string),
	}
	if n.Type == html.DocumentNode {
		el.Tag = "#document"
	}
	for _, attr := range n.Attr {
		el.attrs[attr.Key] = attr.Val
	}
	el.classes = strings.Fields(el.attrs["class"])
	el.parseStyle(el.attrs["style"])
	el.text = strings.TrimSpace(goquery.NewDocumentFromNode(n).Text())
	d.elements[n] = el

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		el.children = append(el.children, d.build(c, el))
	}
	return el
}

// Root returns the document element.
func (d *Document) Root() *Element {
	return d.root
}

// Find returns elements matching a CSS selector, in document order.
func (d *Document) Find(selector string) []*Element {
	var out []*Element
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			if el, ok := d.elements[n]; ok {
				out = append(out, el)
			}
		}
	})
	return out
}

// First returns the first element matching selector, or nil.
func (d *Document) First(selector string) *Element {
	found := d.Find(selector)
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

// ByID returns the element with the given id, or nil.
func (d *Document) ByID(id string) *Element {
	return d.First("#" + id)
}

// Parent returns the parent element, nil for the root.
func (e *Element) Parent() *Element {
	return e.parent
}

// Children returns the element children.
func (e *Element) Children() []*Element {
	out := make([]*Element, len(e.children))
	copy(out, e.children)
	return out
}

// Contains reports whether other is e or one of its descendants.
func (e *Element) Contains(other *Element) bool {
	if e == nil {
		return false
	}
	for n := other; n != nil; n = n.parent {
		if n == e {
			return true
		}
	}
	return false
}

// Attr returns an attribute value.
func (e *Element) Attr(name string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.attrs[name]
	return v, ok
}

// ID returns the id attribute.
func (e *Element) ID() string {
	v, _ := e.Attr("id")
	return v
}

// HasClass reports whether the class list contains name.
func (e *Element) HasClass(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return indexOf(e.classes, name) >= 0
}

// ToggleClass flips name in the class list and reports whether it is now present.
func (e *Element) ToggleClass(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := indexOf(e.classes, name); i >= 0 {
		e.classes = append(e.classes[:i], e.classes[i+1:]...)
		return false
	}
	e.classes = append(e.classes, name)
	return true
}

// RemoveClass drops name from the class list.
func (e *Element) RemoveClass(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := indexOf(e.classes, name); i >= 0 {
		e.classes = append(e.classes[:i], e.classes[i+1:]...)
	}
}

// Classes returns a copy of the class list.
func (e *Element) Classes() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

// Style returns an inline style property.
func (e *Element) Style(prop string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.style[prop]
}

// SetStyle sets an inline style property; an empty value removes it.
func (e *Element) SetStyle(prop, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setStyleLocked(prop, value)
}

// StyleString renders the inline style attribute.
func (e *Element) StyleString() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	parts := make([]string, 0, len(e.styleOrder))
	for _, prop := range e.styleOrder {
		parts = append(parts, prop+": "+e.style[prop])
	}
	return strings.Join(parts, "; ")
}

// Text returns the element text.
func (e *Element) Text() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.text
}

// SetText replaces the element text.
func (e *Element) SetText(text string) {
	e.mu.Lock()
	e.text = text
	e.mu.Unlock()
}

func (e *Element) parseStyle(raw string) {
	for _, decl := range strings.Split(raw, ";") {
		prop, value, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		e.setStyleLocked(strings.ToLower(strings.TrimSpace(prop)), strings.TrimSpace(value))
	}
}

func (e *Element) setStyleLocked(prop, value string) {
	if prop == "" {
		return
	}
	_, exists := e.style[prop]
	if value == "" {
		if exists {
			delete(e.style, prop)
			e.styleOrder = removeString(e.styleOrder, prop)
		}
		return
	}
	if !exists {
		e.styleOrder = append(e.styleOrder, prop)
	}
	e.style[prop] = value
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}

func removeString(list []string, v string) []string {
	if i := indexOf(list, v); i >= 0 {
		return append(list[:i], list[i+1:]...)
	}
	return list
}
