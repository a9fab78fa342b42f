// Package page wires the menu toggle and asset picker onto a parsed host page.
package page

import (
	"context"
	"fmt"

	"github.com/aluiziolira/go-asset-picker/cache"
	"github.com/aluiziolira/go-asset-picker/dom"
	"github.com/aluiziolira/go-asset-picker/menu"
	"github.com/aluiziolira/go-asset-picker/picker"
	"github.com/rs/zerolog/log"
)

// bindPicker is swapped in tests.
var bindPicker = picker.Bind

// Deps are the collaborators the picker needs.
type Deps struct {
	Crawler  picker.Crawler
	Resolver picker.Resolver
	Cache    *cache.AssetCache
	Options  picker.Options
}

// Page is one host page session. Menu or Picker is nil when the markup lacks
// the elements it needs.
type Page struct {
	Doc    *dom.Document
	Menu   *menu.Toggle
	Picker *picker.Picker
	Cache  *cache.AssetCache
}

// Init binds behaviours to doc. A failure while wiring is logged and leaves
// the page with whatever was bound before it.
func Init(doc *dom.Document, deps Deps) (p *Page) {
	if deps.Cache == nil {
		deps.Cache = cache.New()
	}
	p = &Page{Doc: doc, Cache: deps.Cache}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Err(fmt.Errorf("%v", r)).Msg("page wiring failed")
		}
	}()

	if toggle, ok := menu.Bind(doc); ok {
		p.Menu = toggle
	} else {
		log.Debug().Msg("menu toggle not bound")
	}
	if pk, ok := bindPicker(doc, deps.Crawler, deps.Resolver, deps.Cache, deps.Options); ok {
		p.Picker = pk
	} else {
		log.Debug().Msg("asset picker disabled")
	}
	return p
}

// Click routes a click on target. A click inside an asset trigger opens the
// picker and goes no further, so the menu keeps its state; the returned
// channel then closes when the picker's refresh finishes. Any other click
// reaches the popup overlay handler and then the menu, and nil is returned.
func (p *Page) Click(ctx context.Context, target *dom.Element) <-chan struct{} {
	if p.Picker != nil {
		if trigger := p.Picker.TriggerFor(target); trigger != nil {
			return p.Picker.Open(ctx, trigger)
		}
		p.Picker.ClickPopup(target)
	}
	if p.Menu != nil {
		p.Menu.Click(target)
	}
	return nil
}
