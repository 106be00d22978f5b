package panel

import (
	"sync"

	"github.com/rs/zerolog"
)

// LogDisplay is a headless Display that logs every change and keeps the
// current panel contents.
type LogDisplay struct {
	logger zerolog.Logger

	mu      sync.RWMutex
	text    map[Widget]string
	weather Weather
	status  []string
}

var _ Display = (*LogDisplay)(nil)

func NewLogDisplay(logger zerolog.Logger) *LogDisplay {
	return &LogDisplay{
		logger: logger.With().Str("component", "panel").Logger(),
		text:   make(map[Widget]string),
	}
}

func (d *LogDisplay) SetText(w Widget, text string) {
	d.mu.Lock()
	changed := d.text[w] != text
	d.text[w] = text
	d.mu.Unlock()

	if changed {
		d.logger.Debug().Str("widget", string(w)).Str("text", text).Msg("panel updated")
	}
}

func (d *LogDisplay) SetWeather(w Weather) {
	d.mu.Lock()
	d.weather = w
	d.mu.Unlock()
	d.logger.Debug().Stringer("weather", w).Msg("weather icon updated")
}

func (d *LogDisplay) ShowStatus(msg string) {
	d.mu.Lock()
	d.status = append(d.status, msg)
	d.mu.Unlock()
	d.logger.Info().Str("status", msg).Msg("status")
}

// Text returns the current contents of w.
func (d *LogDisplay) Text(w Widget) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text[w]
}

func (d *LogDisplay) Weather() Weather {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.weather
}

// Statuses returns every status message shown so far.
func (d *LogDisplay) Statuses() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.status...)
}
