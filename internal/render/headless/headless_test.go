package headless

import (
	"testing"
	"time"

	"github.com/arrowdash/engine/internal/geo"
	"github.com/arrowdash/engine/internal/render"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMap() *Map {
	return New(Options{Density: 2}, zerolog.Nop())
}

func TestLoadStyle_RunsCallbacksWithFreshStyle(t *testing.T) {
	m := newTestMap()
	var got []render.Style
	m.OnStyleReady(func(s render.Style) { got = append(got, s) })

	first := m.LoadStyle()
	second := m.LoadStyle()

	require.Len(t, got, 2)
	assert.Same(t, first, got[0])
	assert.Same(t, second, got[1])
	assert.NotSame(t, first, second)
	assert.Same(t, second, m.CurrentStyle())
}

func TestStyle_BaseLayersAreTyped(t *testing.T) {
	s := newTestMap().LoadStyle()

	ref, ok := s.Layer("road")
	require.True(t, ok)
	assert.Equal(t, render.LayerLine, ref.Kind)

	ref, ok = s.Layer("road_major")
	require.True(t, ok)
	assert.Equal(t, render.LayerSymbol, ref.Kind)

	_, ok = s.Layer("trunk")
	assert.False(t, ok)
}

func TestStyle_DuplicateIdentifiers(t *testing.T) {
	s := newTestMap().LoadStyle()
	fc := geo.MarkerFeatures(geo.Point{})

	require.NoError(t, s.AddSource("src", fc))
	assert.ErrorIs(t, s.AddSource("src", fc), ErrDuplicateID)

	layer := render.SymbolLayer{ID: "lyr", SourceID: "src"}
	require.NoError(t, s.AddLayer(layer))
	assert.ErrorIs(t, s.AddLayer(layer), ErrDuplicateID)
}

func TestStyle_LayerNeedsSource(t *testing.T) {
	s := newTestMap().LoadStyle()
	err := s.AddLayer(render.SymbolLayer{ID: "lyr", SourceID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStyle_RemoveSourceInUse(t *testing.T) {
	s := newTestMap().LoadStyle()
	require.NoError(t, s.AddSource("src", geo.MarkerFeatures(geo.Point{})))
	require.NoError(t, s.AddLayer(render.SymbolLayer{ID: "lyr", SourceID: "src"}))

	require.Error(t, s.RemoveSource("src"))
	require.NoError(t, s.RemoveLayer("lyr"))
	require.NoError(t, s.RemoveSource("src"))
	assert.False(t, s.HasSource("src"))
}

func TestStyle_SetSourceFeaturesReplaces(t *testing.T) {
	s := newTestMap().LoadStyle()
	require.NoError(t, s.AddSource("src", geo.MarkerFeatures(geo.Point{})))

	require.NoError(t, s.SetSourceFeatures("src", geo.MarkerFeatures(geo.Point{Lat: 1, Lon: 2})))
	fc, ok := s.Source("src")
	require.True(t, ok)
	require.Len(t, fc, 1)
	p, ok := geo.FeaturePoint(fc)
	require.True(t, ok)
	assert.Equal(t, geo.Point{Lat: 1, Lon: 2}, p)

	assert.ErrorIs(t, s.SetSourceFeatures("nope", fc), ErrNotFound)
}

func TestStyle_LayerProperty(t *testing.T) {
	s := newTestMap().LoadStyle()
	require.NoError(t, s.SetLayerProperty("road", render.PropLineWidth, 2.5))
	v, ok := s.LayerProperty("road", render.PropLineWidth)
	require.True(t, ok)
	assert.Equal(t, 2.5, v)

	assert.ErrorIs(t, s.SetLayerProperty("missing", render.PropLineWidth, 1.0), ErrNotFound)
}

func TestStyle_EmptyImageRejected(t *testing.T) {
	s := newTestMap().LoadStyle()
	require.Error(t, s.AddImage("img", nil))
	require.NoError(t, s.AddImage("img", []byte("png")))
	assert.True(t, s.HasImage("img"))
}

func TestMap_CameraLatestWins(t *testing.T) {
	m := newTestMap()
	m.AnimateCamera(render.CameraPose{Center: geo.Point{Lat: 1}, Duration: time.Second})
	m.AnimateCamera(render.CameraPose{Center: geo.Point{Lat: 2}, Bearing: 90})

	pose, n := m.Camera()
	assert.Equal(t, 2, n)
	assert.Equal(t, 2.0, pose.Center.Lat)
	assert.Equal(t, 90.0, pose.Bearing)
}

func TestMap_DestroyStopsCameraAndStyle(t *testing.T) {
	m := newTestMap()
	m.LoadStyle()
	m.Start()
	m.Destroy()

	m.AnimateCamera(render.CameraPose{})
	_, n := m.Camera()
	assert.Equal(t, 0, n)
	assert.Nil(t, m.CurrentStyle())
	assert.Nil(t, m.LoadStyle())
	assert.Equal(t, []string{"start", "destroy"}, m.Lifecycle())
}

func TestMap_DefaultDensity(t *testing.T) {
	m := New(Options{}, zerolog.Nop())
	assert.Equal(t, 1.0, m.Density())
	assert.Equal(t, 2.0, newTestMap().Density())
}
