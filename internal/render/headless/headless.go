// Package headless is an in-memory map renderer. It keeps the style state a
// real engine would keep (images, sources, layers, camera) and logs every
// mutation, so the marker engine can run without a display attached.
package headless

import (
	"errors"
	"fmt"
	"sync"

	"github.com/arrowdash/engine/internal/geo"
	"github.com/arrowdash/engine/internal/render"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/rs/zerolog"
)

var (
	// ErrDuplicateID is returned when adding a source, layer or image whose
	// identifier is already registered in the style.
	ErrDuplicateID = errors.New("identifier already exists")
	// ErrNotFound is returned when mutating a source or layer that does not exist.
	ErrNotFound = errors.New("identifier not found")
)

// DefaultBaseLayers mimics the road layers a street style ships with.
var DefaultBaseLayers = []render.LayerRef{
	{ID: "background", Kind: render.LayerFill},
	{ID: "road", Kind: render.LayerLine},
	{ID: "road-primary", Kind: render.LayerLine},
	{ID: "road_major", Kind: render.LayerSymbol},
	{ID: "road-label", Kind: render.LayerSymbol},
}

// Options configures a headless map.
type Options struct {
	Density    float64
	BaseLayers []render.LayerRef
}

// Map implements render.Map.
type Map struct {
	mu sync.Mutex

	logger  zerolog.Logger
	density float64
	base    []render.LayerRef

	readyFns []func(render.Style)
	style    *Style

	padding     render.Padding
	camera      render.CameraPose
	cameraCalls int

	lifecycle []string
	destroyed bool
}

// New creates a headless map with no style loaded.
func New(opts Options, logger zerolog.Logger) *Map {
	density := opts.Density
	if density <= 0 {
		density = 1
	}
	base := opts.BaseLayers
	if base == nil {
		base = DefaultBaseLayers
	}
	return &Map{
		logger:  logger.With().Str("component", "headless").Logger(),
		density: density,
		base:    base,
	}
}

// OnStyleReady implements render.Map.
func (m *Map) OnStyleReady(fn func(render.Style)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readyFns = append(m.readyFns, fn)
}

// LoadStyle replaces the current style with a fresh one seeded with the base
// layers and runs every style-ready callback with it. It must be called
// from the render loop, like a real engine calling back on its UI thread.
func (m *Map) LoadStyle() *Style {
	s := newStyle(m.base, m.logger)

	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return nil
	}
	m.style = s
	fns := append([]func(render.Style){}, m.readyFns...)
	m.mu.Unlock()

	m.logger.Debug().Int("baseLayers", len(m.base)).Msg("style loaded")
	for _, fn := range fns {
		fn(s)
	}
	return s
}

// CurrentStyle returns the most recently loaded style, nil before the first load.
func (m *Map) CurrentStyle() *Style {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.style
}

// SetPadding implements render.Map.
func (m *Map) SetPadding(p render.Padding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.padding = p
	m.logger.Debug().Int("left", p.Left).Int("top", p.Top).Int("right", p.Right).Int("bottom", p.Bottom).Msg("padding set")
}

// Padding returns the last padding set.
func (m *Map) Padding() render.Padding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.padding
}

// AnimateCamera implements render.Map. The newest pose replaces any previous
// target immediately.
func (m *Map) AnimateCamera(pose render.CameraPose) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return
	}
	m.camera = pose
	m.cameraCalls++

	x, y := geo.WebMercator(pose.Center)
	m.logger.Debug().
		Float64("lat", pose.Center.Lat).
		Float64("lon", pose.Center.Lon).
		Float64("x3857", x).
		Float64("y3857", y).
		Float64("zoom", pose.Zoom).
		Float64("tilt", pose.Tilt).
		Float64("bearing", pose.Bearing).
		Dur("duration", pose.Duration).
		Msg("camera animate")
}

// Camera returns the latest camera target and how many commands were issued.
func (m *Map) Camera() (render.CameraPose, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.camera, m.cameraCalls
}

// Density implements render.Map.
func (m *Map) Density() float64 { return m.density }

func (m *Map) transition(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lifecycle = append(m.lifecycle, name)
	m.logger.Debug().Str("state", name).Msg("lifecycle")
}

func (m *Map) Start()  { m.transition("start") }
func (m *Map) Resume() { m.transition("resume") }
func (m *Map) Pause()  { m.transition("pause") }
func (m *Map) Stop()   { m.transition("stop") }

// Destroy releases the style; later camera commands are ignored.
func (m *Map) Destroy() {
	m.transition("destroy")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyed = true
	m.style = nil
}

// Lifecycle returns the recorded lifecycle transitions in order.
func (m *Map) Lifecycle() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.lifecycle...)
}

type layer struct {
	ref    render.LayerRef
	symbol *render.SymbolLayer
	props  map[string]any
}

// Style implements render.Style.
type Style struct {
	mu     sync.Mutex
	logger zerolog.Logger

	images  map[string][]byte
	sources map[string]geom.GeoJSONFeatureCollection
	layers  map[string]*layer
}

func newStyle(base []render.LayerRef, logger zerolog.Logger) *Style {
	s := &Style{
		logger:  logger,
		images:  make(map[string][]byte),
		sources: make(map[string]geom.GeoJSONFeatureCollection),
		layers:  make(map[string]*layer, len(base)),
	}
	for _, ref := range base {
		s.layers[ref.ID] = &layer{ref: ref, props: make(map[string]any)}
	}
	return s
}

// AddImage implements render.Style.
func (s *Style) AddImage(id string, img []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(img) == 0 {
		return fmt.Errorf("image %q: empty data", id)
	}
	s.images[id] = img
	return nil
}

// AddSource implements render.Style.
func (s *Style) AddSource(id string, features geom.GeoJSONFeatureCollection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[id]; ok {
		return fmt.Errorf("source %q: %w", id, ErrDuplicateID)
	}
	s.sources[id] = features
	return nil
}

// RemoveSource implements render.Style.
func (s *Style) RemoveSource(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[id]; !ok {
		return fmt.Errorf("source %q: %w", id, ErrNotFound)
	}
	for _, l := range s.layers {
		if l.symbol != nil && l.symbol.SourceID == id {
			return fmt.Errorf("source %q still used by layer %q", id, l.ref.ID)
		}
	}
	delete(s.sources, id)
	return nil
}

// HasSource implements render.Style.
func (s *Style) HasSource(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sources[id]
	return ok
}

// SetSourceFeatures implements render.Style. The collection is replaced wholesale.
func (s *Style) SetSourceFeatures(id string, features geom.GeoJSONFeatureCollection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[id]; !ok {
		return fmt.Errorf("source %q: %w", id, ErrNotFound)
	}
	s.sources[id] = features
	if p, ok := geo.FeaturePoint(features); ok {
		s.logger.Trace().Str("source", id).Float64("lat", p.Lat).Float64("lon", p.Lon).Msg("source updated")
	}
	return nil
}

// AddLayer implements render.Style.
func (s *Style) AddLayer(l render.SymbolLayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.layers[l.ID]; ok {
		return fmt.Errorf("layer %q: %w", l.ID, ErrDuplicateID)
	}
	if _, ok := s.sources[l.SourceID]; !ok {
		return fmt.Errorf("layer %q source %q: %w", l.ID, l.SourceID, ErrNotFound)
	}
	sym := l
	s.layers[l.ID] = &layer{
		ref:    render.LayerRef{ID: l.ID, Kind: render.LayerSymbol},
		symbol: &sym,
		props:  map[string]any{render.PropIconRotate: l.IconRotate},
	}
	return nil
}

// RemoveLayer implements render.Style.
func (s *Style) RemoveLayer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.layers[id]; !ok {
		return fmt.Errorf("layer %q: %w", id, ErrNotFound)
	}
	delete(s.layers, id)
	return nil
}

// Layer implements render.Style.
func (s *Style) Layer(id string) (render.LayerRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.layers[id]
	if !ok {
		return render.LayerRef{}, false
	}
	return l.ref, true
}

// SetLayerProperty implements render.Style.
func (s *Style) SetLayerProperty(layerID, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.layers[layerID]
	if !ok {
		return fmt.Errorf("layer %q: %w", layerID, ErrNotFound)
	}
	l.props[key] = value
	return nil
}

// HasImage reports whether an image is registered under id.
func (s *Style) HasImage(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.images[id]
	return ok
}

// Source returns the current content of a source.
func (s *Style) Source(id string) (geom.GeoJSONFeatureCollection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fc, ok := s.sources[id]
	return fc, ok
}

// SymbolLayer returns the descriptor a symbol layer was added with.
func (s *Style) SymbolLayer(id string) (render.SymbolLayer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.layers[id]
	if !ok || l.symbol == nil {
		return render.SymbolLayer{}, false
	}
	return *l.symbol, true
}

// LayerProperty returns a property previously set on a layer.
func (s *Style) LayerProperty(layerID, key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.layers[layerID]
	if !ok {
		return nil, false
	}
	v, ok := l.props[key]
	return v, ok
}

// SourceCount returns the number of registered sources.
func (s *Style) SourceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sources)
}

// LayerCount returns the number of registered layers, base layers included.
func (s *Style) LayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.layers)
}

var (
	_ render.Map   = (*Map)(nil)
	_ render.Style = (*Style)(nil)
)
