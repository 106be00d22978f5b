// Package style installs the marker's visual resources on a freshly loaded
// map style.
package style

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/arrowdash/engine/internal/geo"
	"github.com/arrowdash/engine/internal/render"
	"github.com/rs/zerolog"
)

// Well-known identifiers of the marker's style resources.
const (
	ArrowImageID  = "arrow-image"
	ArrowSourceID = "arrow-source"
	ArrowLayerID  = "arrow-layer"
)

//go:embed assets/arrow.svg
var assets embed.FS

// DefaultIcon is the embedded arrow image.
const DefaultIcon = "assets/arrow.svg"

// Config holds the tunable parts of the setup.
type Config struct {
	PanelWidthDP int
	IconSize     float64
	RoadLayers   []string
	RoadColor    string
	RoadWidth    float64
}

// DefaultConfig matches the dashboard layout: a 280dp panel on the right.
func DefaultConfig() Config {
	return Config{
		PanelWidthDP: 280,
		IconSize:     0.3,
		RoadLayers:   []string{"road", "road-primary", "road_major", "highway-primary", "trunk"},
		RoadColor:    "#FFD27A",
		RoadWidth:    2.5,
	}
}

// IconLoader returns the marker icon bytes.
type IconLoader func() ([]byte, error)

// IconFromFS loads name from fsys.
func IconFromFS(fsys fs.FS, name string) IconLoader {
	return func() ([]byte, error) {
		return fs.ReadFile(fsys, name)
	}
}

// EmbeddedIcon loads the built-in arrow.
func EmbeddedIcon() IconLoader {
	return IconFromFS(assets, DefaultIcon)
}

// Manager runs the one-time setup for each style load.
type Manager struct {
	cfg    Config
	icon   IconLoader
	logger zerolog.Logger
}

// New creates a Manager. A nil icon loader means no icon is registered.
func New(cfg Config, icon IconLoader, logger zerolog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		icon:   icon,
		logger: logger.With().Str("component", "style").Logger(),
	}
}

// Setup prepares s for marker updates. It may be called again for a
// reloaded or the same style; existing marker resources are replaced. Only
// failure to create the marker source or layer is returned.
func (m *Manager) Setup(mp render.Map, s render.Style) error {
	density := mp.Density()
	mp.SetPadding(render.Padding{
		Right: render.DPToPixels(m.cfg.PanelWidthDP, density),
	})

	m.addIcon(s)

	if err := m.addMarker(s); err != nil {
		return err
	}

	m.restyleRoads(s)
	return nil
}

func (m *Manager) addIcon(s render.Style) {
	if m.icon == nil {
		m.logger.Debug().Msg("no marker icon configured")
		return
	}
	img, err := m.icon()
	if err != nil {
		m.logger.Warn().Err(err).Msg("marker icon unavailable, continuing without it")
		return
	}
	if err := s.AddImage(ArrowImageID, img); err != nil {
		m.logger.Warn().Err(err).Msg("marker icon rejected, continuing without it")
	}
}

func (m *Manager) addMarker(s render.Style) error {
	if _, ok := s.Layer(ArrowLayerID); ok {
		if err := s.RemoveLayer(ArrowLayerID); err != nil {
			return fmt.Errorf("removing marker layer: %w", err)
		}
	}
	if s.HasSource(ArrowSourceID) {
		if err := s.RemoveSource(ArrowSourceID); err != nil {
			return fmt.Errorf("removing marker source: %w", err)
		}
	}

	if err := s.AddSource(ArrowSourceID, geo.MarkerFeatures(geo.Point{})); err != nil {
		return fmt.Errorf("adding marker source: %w", err)
	}

	err := s.AddLayer(render.SymbolLayer{
		ID:                    ArrowLayerID,
		SourceID:              ArrowSourceID,
		IconImage:             ArrowImageID,
		IconSize:              m.cfg.IconSize,
		IconAllowOverlap:      true,
		IconIgnorePlacement:   true,
		IconAnchor:            render.AnchorCenter,
		IconRotationAlignment: render.RotationAlignMap,
		IconRotate:            0,
	})
	if err != nil {
		return fmt.Errorf("adding marker layer: %w", err)
	}
	return nil
}

// restyleRoads brightens whichever candidate road layers exist as line
// layers. Absent or differently typed layers are skipped.
func (m *Manager) restyleRoads(s render.Style) {
	for _, id := range m.cfg.RoadLayers {
		ref, ok := s.Layer(id)
		if !ok {
			continue
		}
		if ref.Kind != render.LayerLine {
			m.logger.Trace().Str("layer", id).Stringer("kind", ref.Kind).Msg("skipping non-line road layer")
			continue
		}
		if err := s.SetLayerProperty(id, render.PropLineColor, m.cfg.RoadColor); err != nil {
			m.logger.Debug().Err(err).Str("layer", id).Msg("road restyle failed")
			continue
		}
		if err := s.SetLayerProperty(id, render.PropLineWidth, m.cfg.RoadWidth); err != nil {
			m.logger.Debug().Err(err).Str("layer", id).Msg("road restyle failed")
		}
	}
}
