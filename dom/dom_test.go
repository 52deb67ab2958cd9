package dom

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func parse(t *testing.T, markup string) *html.Node {
	t.Helper()
	ctxNode := &html.Node{Type: html.ElementNode, DataAtom: atom.Body, Data: "body"}
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctxNode)
	if err != nil {
		t.Fatalf("parse fragment: %v", err)
	}
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			return n
		}
	}
	t.Fatal("no element in fragment")
	return nil
}

func TestClassManipulation(t *testing.T) {
	n := parse(t, `<div class="a b"></div>`)

	if !HasClass(n, "a") || !HasClass(n, "b") || HasClass(n, "ab") {
		t.Error("HasClass on initial classes")
	}

	AddClass(n, "c")
	if got := Attr(n, "class"); got != "a b c" {
		t.Errorf("after AddClass: got %q", got)
	}
	AddClass(n, "c")
	if got := Attr(n, "class"); got != "a b c" {
		t.Errorf("AddClass duplicate: got %q", got)
	}

	RemoveClass(n, "b")
	if got := Attr(n, "class"); got != "a c" {
		t.Errorf("after RemoveClass: got %q", got)
	}
	RemoveClass(n, "missing")
	if got := Attr(n, "class"); got != "a c" {
		t.Errorf("RemoveClass missing: got %q", got)
	}
}

func TestAttrRoundTrip(t *testing.T) {
	n := parse(t, `<div data-x="1"></div>`)

	if got := Attr(n, "data-x"); got != "1" {
		t.Errorf("Attr: got %q", got)
	}
	SetAttr(n, "data-x", "2")
	if got := Attr(n, "data-x"); got != "2" {
		t.Errorf("after SetAttr: got %q", got)
	}
	RemoveAttr(n, "data-x")
	if HasAttr(n, "data-x") {
		t.Error("attribute survived RemoveAttr")
	}
	if got := Attr(n, "data-x"); got != "" {
		t.Errorf("Attr after removal: got %q", got)
	}
}

func TestFindByClass_DocumentOrder(t *testing.T) {
	root := parse(t, `<div>
  <span class="x" id="first"></span>
  <div><span class="x" id="second"></span></div>
</div>`)

	first := FindByClass(root, "x")
	if Attr(first, "id") != "first" {
		t.Errorf("FindByClass: got id %q, want %q", Attr(first, "id"), "first")
	}
	all := FindAllByClass(root, "x")
	if len(all) != 2 {
		t.Fatalf("FindAllByClass: got %d, want 2", len(all))
	}
	if Attr(all[1], "id") != "second" {
		t.Errorf("order: got id %q, want %q", Attr(all[1], "id"), "second")
	}
}

func TestClosestByClass(t *testing.T) {
	root := parse(t, `<div class="outer"><div class="inner"><span id="leaf"></span></div></div>`)
	leaf := FindByTag(root, atom.Span)

	if got := ClosestByClass(leaf, "inner"); Attr(got, "class") != "inner" {
		t.Error("ClosestByClass skipped nearest ancestor")
	}
	if got := ClosestByClass(leaf, "outer"); Attr(got, "class") != "outer" {
		t.Error("ClosestByClass missed outer ancestor")
	}
	if ClosestByClass(leaf, "missing") != nil {
		t.Error("ClosestByClass invented a match")
	}
	// Starts at the node itself.
	inner := FindByClass(root, "inner")
	if ClosestByClass(inner, "inner") != inner {
		t.Error("ClosestByClass must consider the start node")
	}
}

func TestWalk_EarlyStop(t *testing.T) {
	root := parse(t, `<div><p></p><p></p><p></p></div>`)

	visited := 0
	Walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.P {
			visited++
			return false
		}
		return true
	})
	if visited != 1 {
		t.Errorf("visited %d paragraphs after stop, want 1", visited)
	}
}

func TestCloneIsDetachedDeepCopy(t *testing.T) {
	orig := parse(t, `<div class="a"><span>hi</span></div>`)
	cp := Clone(orig)

	if cp.Parent != nil || cp.NextSibling != nil {
		t.Error("clone not detached")
	}
	AddClass(cp, "b")
	if HasClass(orig, "b") {
		t.Error("mutating clone touched the original")
	}
	if Render(cp) == "" || InnerText(cp) != "hi" {
		t.Errorf("clone content: %q / %q", Render(cp), InnerText(cp))
	}
}

func TestReplaceWith(t *testing.T) {
	root := parse(t, `<div><span id="old"></span><i></i></div>`)
	old := FindByTag(root, atom.Span)
	repl := Element("b", "id", "new")

	ReplaceWith(old, repl)
	if FindByTag(root, atom.Span) != nil {
		t.Error("old node still attached")
	}
	got := FindByTag(root, atom.B)
	if got == nil || got.NextSibling == nil || got.NextSibling.DataAtom != atom.I {
		t.Error("replacement lost document position")
	}
}

func TestSetTextAndInnerText(t *testing.T) {
	n := parse(t, `<span>old <b>text</b></span>`)

	SetText(n, "Forest")
	if got := InnerText(n); got != "Forest" {
		t.Errorf("InnerText: got %q", got)
	}
	if got := Render(n); got != "<span>Forest</span>" {
		t.Errorf("Render: got %q", got)
	}
}

func TestNilTolerance(t *testing.T) {
	if Attr(nil, "k") != "" || HasAttr(nil, "k") || HasClass(nil, "c") {
		t.Error("nil reads not zero-valued")
	}
	// Mutators must not panic on nil.
	SetAttr(nil, "k", "v")
	RemoveAttr(nil, "k")
	AddClass(nil, "c")
	RemoveClass(nil, "c")
	RemoveChildren(nil)
	if FindByClass(nil, "c") != nil || Render(nil) != "" || Clone(nil) != nil {
		t.Error("nil lookups not zero-valued")
	}
}
