// Package picker implements the popup asset picker: a Hidden/Open state
// machine that shows cached thumbnails at once, refreshes them with a
// background crawl and applies the chosen image to the element that opened it.
package picker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-asset-picker/cache"
	"github.com/aluiziolira/go-asset-picker/dom"
	"github.com/aluiziolira/go-asset-picker/loader"
	"github.com/aluiziolira/go-asset-picker/models"
	"github.com/aluiziolira/go-asset-picker/parser"
	"github.com/rs/zerolog/log"
)

const (
	PopupID          = "asset-popup"
	ImageListID      = "asset-image-list"
	TitleID          = "asset-popup-title"
	TriggerSelector  = "[data-asset][data-folder]"
	LabelAttr        = "data-asset"
	FolderAttr       = "data-folder"
	DefaultLabel     = "Image"
	NoImagesMessage  = "No images found"
	ThumbnailSize    = 80
	resolveFanout    = 8
	defaultPublicDir = "../public/"
)

var (
	// ErrNotOpen is returned when selecting while the popup is hidden.
	ErrNotOpen = errors.New("picker: popup is not open")
	// ErrNoThumbnail is returned for an out-of-range thumbnail index.
	ErrNoThumbnail = errors.New("picker: no such thumbnail")
	// ErrHiddenThumbnail is returned when selecting a thumbnail that failed to load.
	ErrHiddenThumbnail = errors.New("picker: thumbnail is hidden")
)

// State is the popup visibility.
type State int

const (
	Hidden State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "hidden"
}

// Crawler discovers the images of a folder.
type Crawler interface {
	Crawl(ctx context.Context, startFolderURL string, maxFolders int) (*models.CrawlResult, error)
}

// Resolver finds a loadable source for a thumbnail.
type Resolver interface {
	Resolve(ctx context.Context, item models.ImageItem) loader.Resolution
}

// Trigger is an element carrying an asset label and a folder identifier.
type Trigger struct {
	Index      int
	Element    *dom.Element
	Label      string
	Folder     string
	FolderPath string
}

// Thumbnail is one rendered image in the popup list. Resolved is false while
// it still shows the unprobed source of a cached item.
type Thumbnail struct {
	Item     models.ImageItem `json:"item"`
	Src      string           `json:"src"`
	Tier     string           `json:"tier"`
	Hidden   bool             `json:"hidden"`
	Resolved bool             `json:"resolved"`
	Width    int              `json:"width"`
	Height   int              `json:"height"`
}

// View is a snapshot of the popup.
type View struct {
	State      string      `json:"state"`
	Title      string      `json:"title"`
	FolderPath string      `json:"folder_path,omitempty"`
	Thumbnails []Thumbnail `json:"thumbnails"`
	Message    string      `json:"message,omitempty"`
}

// Options tune where folders live and how far a crawl may go.
type Options struct {
	PublicRoot string
	MaxFolders int
}

// Picker owns the popup state for one page session.
type Picker struct {
	popup *dom.Element
	list  *dom.Element
	title *dom.Element

	triggers []*Trigger
	crawler  Crawler
	resolver Resolver
	cache    *cache.AssetCache
	opts     Options

	mu      sync.Mutex
	state   State
	target  *Trigger
	thumbs  []Thumbnail
	message string

	refreshes sync.WaitGroup
}

// Bind wires the picker to the page. ok is false, and the picker disabled,
// when the popup, image list or title element is missing.
func Bind(doc *dom.Document, crawler Crawler, resolver Resolver, c *cache.AssetCache, opts Options) (*Picker, bool) {
	if doc == nil {
		return nil, false
	}
	popup := doc.ByID(PopupID)
	list := doc.ByID(ImageListID)
	title := doc.ByID(TitleID)
	if popup == nil || list == nil || title == nil {
		return nil, false
	}
	if opts.PublicRoot == "" {
		opts.PublicRoot = defaultPublicDir
	}
	if c == nil {
		c = cache.New()
	}

	p := &Picker{
		popup:    popup,
		list:     list,
		title:    title,
		crawler:  crawler,
		resolver: resolver,
		cache:    c,
		opts:     opts,
	}
	for _, el := range doc.Find(TriggerSelector) {
		label, _ := el.Attr(LabelAttr)
		folder, _ := el.Attr(FolderAttr)
		p.triggers = append(p.triggers, &Trigger{
			Index:      len(p.triggers),
			Element:    el,
			Label:      label,
			Folder:     folder,
			FolderPath: parser.FolderPath(opts.PublicRoot, folder),
		})
	}
	return p, true
}

// Triggers returns the bound trigger elements in document order.
func (p *Picker) Triggers() []*Trigger {
	out := make([]*Trigger, len(p.triggers))
	copy(out, p.triggers)
	return out
}

// Trigger returns the trigger at index.
func (p *Picker) Trigger(index int) (*Trigger, error) {
	if index < 0 || index >= len(p.triggers) {
		return nil, fmt.Errorf("trigger %d: out of range", index)
	}
	return p.triggers[index], nil
}

// Open shows the popup for trigger. Cached items for the trigger's folder are
// listed with their own sources before Open returns, without probing them; a
// fresh crawl then runs in the background, overwrites the cache and re-renders
// with resolved sources even if the popup has been closed since. The returned
// channel is closed when that refresh finishes.
//
// ctx bounds the background crawl, so it should outlive the caller's request.
func (p *Picker) Open(ctx context.Context, trigger *Trigger) <-chan struct{} {
	if ctx == nil {
		ctx = context.Background()
	}
	label := trigger.Label
	if label == "" {
		label = DefaultLabel
	}
	p.title.SetText("Select " + label)

	p.mu.Lock()
	p.state = Open
	p.popup.SetStyle("display", "flex")
	p.mu.Unlock()

	log.Debug().Str("folder", trigger.FolderPath).Str("label", label).Msg("picker opened")

	cached, ok := p.cache.Get(trigger.FolderPath)
	if ok && len(cached) > 0 {
		p.show(trigger, pending(cached))
	}

	done := make(chan struct{})
	p.refreshes.Add(1)
	go func() {
		defer p.refreshes.Done()
		defer close(done)
		p.refresh(ctx, trigger, cached)
	}()
	return done
}

// TriggerFor returns the trigger whose element is or contains target, or nil.
func (p *Picker) TriggerFor(target *dom.Element) *Trigger {
	for _, t := range p.triggers {
		if t.Element.Contains(target) {
			return t
		}
	}
	return nil
}

func (p *Picker) refresh(ctx context.Context, trigger *Trigger, cached []models.ImageItem) {
	result, err := p.crawler.Crawl(ctx, trigger.FolderPath, p.opts.MaxFolders)
	if err != nil {
		log.Warn().Err(err).Str("folder", trigger.FolderPath).Msg("asset crawl aborted")
		// The cached listing stays; its sources still need probing.
		if len(cached) > 0 {
			p.render(ctx, trigger, cached)
		}
		return
	}

	p.cache.Set(trigger.FolderPath, result.Items)
	if len(result.Items) > 0 {
		p.render(ctx, trigger, result.Items)
		return
	}

	p.mu.Lock()
	p.target = trigger
	p.thumbs = nil
	p.message = NoImagesMessage
	p.list.SetText(NoImagesMessage)
	p.mu.Unlock()
}

// render resolves a source for every item and replaces the popup list.
func (p *Picker) render(ctx context.Context, trigger *Trigger, items []models.ImageItem) {
	thumbs := make([]Thumbnail, len(items))
	sem := make(chan struct{}, resolveFanout)
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, item models.ImageItem) {
			defer wg.Done()
			defer func() { <-sem }()
			thumbs[i] = p.thumbnail(ctx, item)
		}(i, item)
	}
	wg.Wait()

	p.show(trigger, thumbs)
}

// show replaces the popup list with thumbs rendered for trigger.
func (p *Picker) show(trigger *Trigger, thumbs []Thumbnail) {
	p.mu.Lock()
	p.target = trigger
	p.thumbs = thumbs
	p.message = ""
	p.list.SetText("")
	p.mu.Unlock()
}

// pending lists items with their primary sources, before any probe.
func pending(items []models.ImageItem) []Thumbnail {
	thumbs := make([]Thumbnail, len(items))
	for i, item := range items {
		thumbs[i] = Thumbnail{
			Item:   item,
			Src:    item.Src,
			Tier:   loader.TierPrimary.String(),
			Width:  ThumbnailSize,
			Height: ThumbnailSize,
		}
	}
	return thumbs
}

func (p *Picker) thumbnail(ctx context.Context, item models.ImageItem) Thumbnail {
	thumb := Thumbnail{
		Item:     item,
		Src:      item.Src,
		Tier:     loader.TierPrimary.String(),
		Resolved: true,
		Width:    ThumbnailSize,
		Height:   ThumbnailSize,
	}
	if p.resolver == nil {
		return thumb
	}
	res := p.resolver.Resolve(ctx, item)
	thumb.Tier = res.Tier.String()
	thumb.Hidden = res.Hidden
	if !res.Hidden {
		thumb.Src = res.Src
	}
	return thumb
}

// ClickPopup closes the popup when target is the overlay itself, not its content.
func (p *Picker) ClickPopup(target *dom.Element) bool {
	if target != p.popup {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Open {
		return false
	}
	p.hideLocked()
	return true
}

// Dismiss closes the popup as if its overlay had been clicked.
func (p *Picker) Dismiss() bool {
	return p.ClickPopup(p.popup)
}

// Select applies thumbnail index as the background of the trigger it was
// rendered for and closes the popup.
func (p *Picker) Select(index int) (Thumbnail, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != Open {
		return Thumbnail{}, ErrNotOpen
	}
	if index < 0 || index >= len(p.thumbs) {
		return Thumbnail{}, ErrNoThumbnail
	}
	thumb := p.thumbs[index]
	if thumb.Hidden {
		return Thumbnail{}, ErrHiddenThumbnail
	}

	if p.target != nil {
		el := p.target.Element
		el.SetStyle("background-image", fmt.Sprintf("url('%s')", thumb.Src))
		el.SetStyle("background-size", "cover")
		el.SetStyle("background-position", "center")
	}
	p.hideLocked()

	log.Debug().Str("src", thumb.Src).Msg("asset selected")
	return thumb, nil
}

func (p *Picker) hideLocked() {
	p.state = Hidden
	p.popup.SetStyle("display", "none")
}

// State reports the popup visibility.
func (p *Picker) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// View returns a snapshot of the popup.
func (p *Picker) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := View{
		State:      p.state.String(),
		Title:      p.title.Text(),
		Thumbnails: make([]Thumbnail, len(p.thumbs)),
		Message:    p.message,
	}
	copy(v.Thumbnails, p.thumbs)
	if p.target != nil {
		v.FolderPath = p.target.FolderPath
	}
	return v
}

// Popup returns the popup overlay element.
func (p *Picker) Popup() *dom.Element { return p.popup }

// Wait blocks until every background refresh has finished.
func (p *Picker) Wait() {
	p.refreshes.Wait()
}
