// Package streams tracks the discovered media streams of a decode graph
// and the per-kind track selection against them.
package streams

import (
	"errors"
	"strings"
	"sync"
)

// ErrInvalidTrack is returned when a selection references a stream id
// that is absent from the latest collection snapshot.
var ErrInvalidTrack = errors.New("streams: track not in current collection")

// Kind identifies the media kind of a stream.
type Kind string

const (
	KindVideo    Kind = "video"
	KindAudio    Kind = "audio"
	KindSubtitle Kind = "subtitle"
)

// Kinds lists all kinds in selection order.
var Kinds = []Kind{KindVideo, KindAudio, KindSubtitle}

// KindForCaps maps a negotiated capability name to a stream kind.
// Capability names are prefix-matched: "video/x-h265" -> video,
// "text/x-raw" -> subtitle.
func KindForCaps(capsName string) (Kind, bool) {
	switch {
	case strings.HasPrefix(capsName, "video/"), strings.HasPrefix(capsName, "image/"):
		return KindVideo, true
	case strings.HasPrefix(capsName, "audio/"):
		return KindAudio, true
	case strings.HasPrefix(capsName, "text/"), strings.HasPrefix(capsName, "subpicture/"):
		return KindSubtitle, true
	}
	return "", false
}

// Descriptor describes one discovered stream. Immutable once published.
type Descriptor struct {
	ID       string
	Kind     Kind
	Language string
	// Caps is the capability summary of the stream, e.g. "audio/x-opus".
	Caps string
}

// IsRawText reports whether a subtitle descriptor carries raw text
// rather than a bitmap format. Raw text is preferred for initial
// selection; bitmap subtitles degrade gracefully when unsupported.
func (d Descriptor) IsRawText() bool {
	return d.Kind == KindSubtitle && strings.HasPrefix(d.Caps, "text/x-raw")
}

// Collection is an immutable snapshot of the streams a graph reported.
// Snapshots always replace wholesale, never merge.
type Collection struct {
	descriptors []Descriptor
	byID        map[string]Descriptor
}

// NewCollection builds a snapshot from the given descriptors,
// preserving their order.
func NewCollection(descriptors []Descriptor) *Collection {
	c := &Collection{
		descriptors: make([]Descriptor, len(descriptors)),
		byID:        make(map[string]Descriptor, len(descriptors)),
	}
	copy(c.descriptors, descriptors)
	for _, d := range c.descriptors {
		c.byID[d.ID] = d
	}
	return c
}

// Len returns the number of streams in the snapshot.
func (c *Collection) Len() int { return len(c.descriptors) }

// Contains reports whether the snapshot holds the given stream id.
func (c *Collection) Contains(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// ByKind returns the streams of one kind in discovery order.
func (c *Collection) ByKind(kind Kind) []Descriptor {
	var out []Descriptor
	for _, d := range c.descriptors {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// First returns the first stream of the given kind.
func (c *Collection) First(kind Kind) (Descriptor, bool) {
	for _, d := range c.descriptors {
		if d.Kind == kind {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Catalog holds the latest collection snapshot and the current
// per-kind selection. Safe for concurrent use: the bus watch replaces
// snapshots while the UI thread lists and selects.
type Catalog struct {
	mu         sync.RWMutex
	collection *Collection
	selected   map[Kind]string
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		collection: NewCollection(nil),
		selected:   make(map[Kind]string),
	}
}

// Replace installs a new snapshot wholesale and revalidates the
// current selection against it: selections whose id vanished from the
// snapshot are dropped.
func (c *Catalog) Replace(col *Collection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.collection = col
	for kind, id := range c.selected {
		if !col.Contains(id) {
			delete(c.selected, kind)
		}
	}
}

// Collection returns the latest snapshot.
func (c *Catalog) Collection() *Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collection
}

// List returns the streams of one kind from the latest snapshot.
func (c *Catalog) List(kind Kind) []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collection.ByKind(kind)
}

// Current returns the selected stream id for a kind, if any.
func (c *Catalog) Current(kind Kind) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.selected[kind]
	return id, ok
}

// Select records the selection of id for the given kind. It returns
// ErrInvalidTrack when id is absent from the latest snapshot, leaving
// the selection untouched. Selecting the already-current id is a
// no-op; changed reports whether the selection actually moved.
func (c *Catalog) Select(kind Kind, id string) (changed bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.collection.Contains(id) {
		return false, ErrInvalidTrack
	}
	if d := c.collection.byID[id]; d.Kind != kind {
		return false, ErrInvalidTrack
	}
	if current, ok := c.selected[kind]; ok && current == id {
		return false, nil
	}
	c.selected[kind] = id
	return true, nil
}

// Deselect clears the selection for a kind (e.g. subtitles off).
func (c *Catalog) Deselect(kind Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.selected, kind)
}

// SelectedIDs returns the currently selected stream ids in kind order
// (video, audio, subtitle). This is the id set a stream-selection
// request carries.
func (c *Catalog) SelectedIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var ids []string
	for _, kind := range Kinds {
		if id, ok := c.selected[kind]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// SelectInitial computes and records the default selection for a fresh
// snapshot: first video, first audio, and the first raw-text subtitle
// if one exists (bitmap-only subtitle sets stay unselected).
func (c *Catalog) SelectInitial() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.selected = make(map[Kind]string)
	if d, ok := c.collection.First(KindVideo); ok {
		c.selected[KindVideo] = d.ID
	}
	if d, ok := c.collection.First(KindAudio); ok {
		c.selected[KindAudio] = d.ID
	}
	for _, d := range c.collection.ByKind(KindSubtitle) {
		if d.IsRawText() {
			c.selected[KindSubtitle] = d.ID
			break
		}
	}

	var ids []string
	for _, kind := range Kinds {
		if id, ok := c.selected[kind]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
