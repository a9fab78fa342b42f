package menu

import (
	"testing"

	"github.com/aluiziolira/go-asset-picker/dom"
)

const page = `<html><body>
<nav class="navbar">
  <div class="hamburger"><span id="bar"></span></div>
  <ul class="right"><li><a id="link" href="/">Home</a></li></ul>
</nav>
<main id="main"><p id="para">text</p></main>
</body></html>`

func bind(t *testing.T) (*Toggle, *dom.Document) {
	t.Helper()
	doc, err := dom.ParseString(page)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	toggle, ok := Bind(doc)
	if !ok {
		t.Fatalf("bind failed")
	}
	return toggle, doc
}

func TestClickTriggerToggles(t *testing.T) {
	toggle, _ := bind(t)

	if toggle.Open() {
		t.Fatalf("panel should start closed")
	}
	if !toggle.ClickTrigger() || !toggle.Open() {
		t.Fatalf("first click should open")
	}
	if toggle.ClickTrigger() || toggle.Open() {
		t.Fatalf("second click should close")
	}
}

func TestClickOutsideCollapses(t *testing.T) {
	toggle, doc := bind(t)
	toggle.ClickTrigger()

	toggle.ClickDocument(doc.ByID("link"))
	if !toggle.Open() {
		t.Fatalf("click inside panel should keep it open")
	}
	toggle.ClickDocument(doc.ByID("bar"))
	if !toggle.Open() {
		t.Fatalf("click inside trigger should keep it open")
	}
	toggle.ClickDocument(doc.ByID("para"))
	if toggle.Open() {
		t.Fatalf("click outside should collapse")
	}

	toggle.ClickDocument(doc.ByID("main"))
	if toggle.Open() {
		t.Fatalf("closed panel should stay closed")
	}
}

func TestClickDispatch(t *testing.T) {
	toggle, doc := bind(t)

	toggle.Click(doc.ByID("bar"))
	if !toggle.Open() {
		t.Fatalf("click on trigger child should open")
	}
	toggle.Click(doc.ByID("main"))
	if toggle.Open() {
		t.Fatalf("click outside should close")
	}
}

func TestBindMissingElements(t *testing.T) {
	doc, err := dom.ParseString(`<html><body><div class="hamburger"></div></body></html>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := Bind(doc); ok {
		t.Fatalf("bind should fail without a panel")
	}
}
