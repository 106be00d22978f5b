package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type nopStyle struct{ Style }

func TestGate_Transitions(t *testing.T) {
	g := NewGate()
	assert.Equal(t, NotReady, g.State())
	_, ok := g.Style()
	assert.False(t, ok)

	s := nopStyle{}
	g.Open(s)
	assert.Equal(t, Ready, g.State())
	got, ok := g.Style()
	assert.True(t, ok)
	assert.Equal(t, s, got)

	g.Close()
	assert.Equal(t, NotReady, g.State())
	assert.Equal(t, "not-ready", g.State().String())
}

func TestDPToPixels(t *testing.T) {
	assert.Equal(t, 280, DPToPixels(280, 1))
	assert.Equal(t, 770, DPToPixels(280, 2.75))
	assert.Equal(t, 0, DPToPixels(0, 3))
}

func TestLayerKind_String(t *testing.T) {
	assert.Equal(t, "line", LayerLine.String())
	assert.Equal(t, "symbol", LayerSymbol.String())
	assert.Equal(t, "other", LayerOther.String())
}
