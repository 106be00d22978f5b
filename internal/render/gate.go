package render

import "sync"

// Readiness is the attachment state of the renderer's style.
type Readiness int

const (
	NotReady Readiness = iota
	Ready
)

func (r Readiness) String() string {
	if r == Ready {
		return "ready"
	}
	return "not-ready"
}

// Gate tracks whether a style is attached and set up. Updates consult it
// instead of checking for a nil style at every call site.
type Gate struct {
	mu    sync.RWMutex
	style Style
}

// NewGate returns a gate in the NotReady state.
func NewGate() *Gate {
	return &Gate{}
}

// Open attaches s and moves the gate to Ready.
func (g *Gate) Open(s Style) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.style = s
}

// Close detaches the style and moves the gate to NotReady.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.style = nil
}

// Style returns the attached style, ok=false while NotReady.
func (g *Gate) Style() (Style, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.style, g.style != nil
}

// State returns the current readiness.
func (g *Gate) State() Readiness {
	if _, ok := g.Style(); ok {
		return Ready
	}
	return NotReady
}
