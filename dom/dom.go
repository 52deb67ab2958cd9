// Package dom provides the small set of html.Node helpers shared by the
// swatchsync packages: class manipulation, attribute access, class-scoped
// lookup, subtree rendering, and structural edits.
//
// Everything operates on golang.org/x/net/html node trees. Helpers are
// nil-tolerant: passing a nil node is a no-op (or a zero result), so callers
// can chain lookups without guarding every step.
package dom

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attr returns the value of the named attribute, or "" if absent.
func Attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr reports whether the named attribute is present, even if empty.
func HasAttr(n *html.Node, key string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// SetAttr sets or replaces the named attribute.
func SetAttr(n *html.Node, key, val string) {
	if n == nil {
		return
	}
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes the named attribute if present.
func RemoveAttr(n *html.Node, key string) {
	if n == nil {
		return
	}
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// HasClass reports whether the node's class attribute contains name.
func HasClass(n *html.Node, name string) bool {
	for _, c := range strings.Fields(Attr(n, "class")) {
		if c == name {
			return true
		}
	}
	return false
}

// AddClass appends name to the class attribute unless already present.
func AddClass(n *html.Node, name string) {
	if n == nil || HasClass(n, name) {
		return
	}
	cur := Attr(n, "class")
	if cur == "" {
		SetAttr(n, "class", name)
		return
	}
	SetAttr(n, "class", cur+" "+name)
}

// RemoveClass removes name from the class attribute.
func RemoveClass(n *html.Node, name string) {
	if n == nil {
		return
	}
	fields := strings.Fields(Attr(n, "class"))
	kept := fields[:0]
	for _, c := range fields {
		if c != name {
			kept = append(kept, c)
		}
	}
	SetAttr(n, "class", strings.Join(kept, " "))
}

// FindByClass returns the first element in the subtree (including root)
// carrying the class, in document order.
func FindByClass(root *html.Node, name string) *html.Node {
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && HasClass(n, name) {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindAllByClass returns every element in the subtree carrying the class,
// in document order.
func FindAllByClass(root *html.Node, name string) []*html.Node {
	var out []*html.Node
	Walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && HasClass(n, name) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// FindByTag returns the first element with the given atom in the subtree.
func FindByTag(root *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	Walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = n
			return false
		}
		return true
	})
	return found
}

// ClosestByClass walks up the parent chain (starting at n itself) and
// returns the first element carrying the class, or nil.
func ClosestByClass(n *html.Node, name string) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type == html.ElementNode && HasClass(cur, name) {
			return cur
		}
	}
	return nil
}

// Walk visits the subtree rooted at n in document order. Returning false from
// fn stops the walk (and skips the rest of the tree).
func Walk(n *html.Node, fn func(*html.Node) bool) {
	if n == nil {
		return
	}
	var stopped bool
	var rec func(*html.Node)
	rec = func(cur *html.Node) {
		if stopped {
			return
		}
		if !fn(cur) {
			stopped = true
			return
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
}

// Render serialises the subtree rooted at n to HTML.
func Render(n *html.Node) string {
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// Clone deep-copies a subtree. The copy is detached (nil Parent/siblings).
func Clone(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	cp := &html.Node{
		Type:     n.Type,
		DataAtom: n.DataAtom,
		Data:     n.Data,
		Attr:     append([]html.Attribute(nil), n.Attr...),
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		cp.AppendChild(Clone(c))
	}
	return cp
}

// ReplaceWith swaps old for repl in old's parent, keeping document position.
// repl must be detached.
func ReplaceWith(old, repl *html.Node) {
	if old == nil || old.Parent == nil || repl == nil {
		return
	}
	parent := old.Parent
	parent.InsertBefore(repl, old)
	parent.RemoveChild(old)
}

// RemoveChildren detaches every child of n.
func RemoveChildren(n *html.Node) {
	if n == nil {
		return
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

// Element creates a detached element node with the given tag and
// key/value attribute pairs.
func Element(tag string, attrs ...string) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Lookup([]byte(tag)),
		Data:     tag,
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

// Text creates a detached text node.
func Text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

// SetText replaces the content of n with a single text node.
func SetText(n *html.Node, s string) {
	RemoveChildren(n)
	if n != nil {
		n.AppendChild(Text(s))
	}
}

// InnerText collects the trimmed text content of the subtree.
func InnerText(n *html.Node) string {
	var sb strings.Builder
	Walk(n, func(cur *html.Node) bool {
		if cur.Type == html.TextNode {
			text := strings.TrimSpace(cur.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		return true
	})
	return sb.String()
}
