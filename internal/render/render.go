// Package render declares the map renderer the marker engine drives. The
// renderer itself (tiles, projection, gestures, style parsing) lives
// outside this module; only its style-mutation and camera surface is
// modelled here.
package render

import (
	"time"

	"github.com/arrowdash/engine/internal/geo"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Layer property keys understood by SetLayerProperty.
const (
	PropIconRotate = "icon-rotate"
	PropLineColor  = "line-color"
	PropLineWidth  = "line-width"
)

// Icon anchor and rotation alignment values.
const (
	AnchorCenter     = "center"
	RotationAlignMap = "map"
)

// LayerKind is the style type of an existing layer.
type LayerKind int

const (
	LayerOther LayerKind = iota
	LayerLine
	LayerSymbol
	LayerFill
)

func (k LayerKind) String() string {
	switch k {
	case LayerLine:
		return "line"
	case LayerSymbol:
		return "symbol"
	case LayerFill:
		return "fill"
	default:
		return "other"
	}
}

// LayerRef is the result of a typed layer lookup.
type LayerRef struct {
	ID   string
	Kind LayerKind
}

// SymbolLayer describes an icon layer bound to a source.
type SymbolLayer struct {
	ID                    string
	SourceID              string
	IconImage             string
	IconSize              float64
	IconAllowOverlap      bool
	IconIgnorePlacement   bool
	IconAnchor            string
	IconRotationAlignment string
	IconRotate            float64
}

// Padding is the camera viewport inset in pixels.
type Padding struct {
	Left, Top, Right, Bottom int
}

// CameraPose is a camera target plus the time to animate to it.
type CameraPose struct {
	Center   geo.Point
	Zoom     float64
	Tilt     float64
	Bearing  float64
	Duration time.Duration
}

// Style is the mutable style of a loaded map. It is only valid between a
// style-ready callback and the next style reload.
type Style interface {
	AddImage(id string, img []byte) error
	AddSource(id string, features geom.GeoJSONFeatureCollection) error
	RemoveSource(id string) error
	HasSource(id string) bool
	SetSourceFeatures(id string, features geom.GeoJSONFeatureCollection) error

	AddLayer(layer SymbolLayer) error
	RemoveLayer(id string) error
	// Layer reports the kind of an existing layer, ok=false when absent.
	Layer(id string) (ref LayerRef, ok bool)
	SetLayerProperty(layerID, key string, value any) error
}

// Lifecycle forwards host view lifecycle to the renderer.
type Lifecycle interface {
	Start()
	Resume()
	Pause()
	Stop()
	Destroy()
}

// Map is the renderer handle. All calls must be made from the render loop.
type Map interface {
	Lifecycle

	// OnStyleReady registers fn to run every time a style finishes loading.
	OnStyleReady(fn func(Style))
	SetPadding(p Padding)
	// AnimateCamera supersedes any animation in flight.
	AnimateCamera(pose CameraPose)
	// Density is the display's pixels per density-independent unit.
	Density() float64
}

// DPToPixels converts density-independent units to whole pixels.
func DPToPixels(dp int, density float64) int {
	return int(float64(dp) * density)
}
