// Package menu implements the responsive navigation toggle.
package menu

import "github.com/aluiziolira/go-asset-picker/dom"

const (
	TriggerSelector = ".hamburger"
	PanelSelector   = ".navbar .right"
	ActiveClass     = "active"
)

// Toggle shows and hides the navigation panel. Visibility lives only in the
// panel's class list.
type Toggle struct {
	trigger *dom.Element
	panel   *dom.Element
}

// Bind locates the trigger and panel; ok is false when either is missing.
func Bind(doc *dom.Document) (*Toggle, bool) {
	if doc == nil {
		return nil, false
	}
	trigger := doc.First(TriggerSelector)
	panel := doc.First(PanelSelector)
	if trigger == nil || panel == nil {
		return nil, false
	}
	return &Toggle{trigger: trigger, panel: panel}, true
}

// ClickTrigger flips the panel. The click does not reach the document handler.
func (t *Toggle) ClickTrigger() bool {
	return t.panel.ToggleClass(ActiveClass)
}

// ClickDocument collapses the panel unless target is inside the trigger or the panel.
func (t *Toggle) ClickDocument(target *dom.Element) {
	if t.trigger.Contains(target) || t.panel.Contains(target) {
		return
	}
	t.panel.RemoveClass(ActiveClass)
}

// Click dispatches a click on target: clicks inside the trigger toggle,
// anything else goes to the document handler.
func (t *Toggle) Click(target *dom.Element) {
	if t.trigger.Contains(target) {
		t.ClickTrigger()
		return
	}
	t.ClickDocument(target)
}

// Open reports whether the panel is shown.
func (t *Toggle) Open() bool {
	return t.panel.HasClass(ActiveClass)
}

// Trigger returns the toggle element.
func (t *Toggle) Trigger() *dom.Element { return t.trigger }

// Panel returns the navigation panel.
func (t *Toggle) Panel() *dom.Element { return t.panel }
