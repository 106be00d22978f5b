// Package panel drives the information panel overlaid on the map.
package panel

import (
	"math"
	"strconv"
)

// Widget names a text field on the panel.
type Widget string

const (
	SpeedLimit   Widget = "speed-limit"
	CurrentSpeed Widget = "current-speed"
	Temperature  Widget = "temperature"
	ETA          Widget = "eta"
	Distance     Widget = "distance"
)

// Weather selects the weather icon.
type Weather int

const (
	Sun Weather = iota
	Rain
)

func (w Weather) String() string {
	if w == Rain {
		return "rain"
	}
	return "sun"
}

// Display is implemented by the host UI.
type Display interface {
	SetText(w Widget, text string)
	SetWeather(w Weather)
	// ShowStatus pops up a transient message.
	ShowStatus(msg string)
}

// Presenter formats values for a Display.
type Presenter struct {
	display Display
}

// NewPresenter returns a presenter writing to d.
func NewPresenter(d Display) *Presenter {
	return &Presenter{display: d}
}

// UpdateSpeedLimit shows the limit as a bare number.
func (p *Presenter) UpdateSpeedLimit(limit int) {
	p.display.SetText(SpeedLimit, strconv.Itoa(limit))
}

// UpdateCurrentSpeed shows the speed as "N Km/h".
func (p *Presenter) UpdateCurrentSpeed(speedKmh int) {
	p.display.SetText(CurrentSpeed, strconv.Itoa(speedKmh)+" Km/h")
}

// UpdateTemperature shows degrees Celsius as "N°".
func (p *Presenter) UpdateTemperature(tempC int) {
	p.display.SetText(Temperature, strconv.Itoa(tempC)+"°")
}

// UpdateWeatherIcon shows rain when isRain, sun otherwise.
func (p *Presenter) UpdateWeatherIcon(isRain bool) {
	if isRain {
		p.display.SetWeather(Rain)
		return
	}
	p.display.SetWeather(Sun)
}

// UpdateEtaAndDistance shows both strings verbatim.
func (p *Presenter) UpdateEtaAndDistance(eta, distance string) {
	p.display.SetText(ETA, eta)
	p.display.SetText(Distance, distance)
}

// ShowStatus pops a transient status message.
func (p *Presenter) ShowStatus(msg string) {
	p.display.ShowStatus(msg)
}

// RoundSpeed converts a reported speed to the integer shown on the panel.
func RoundSpeed(kmh float64) int {
	if math.IsNaN(kmh) || math.IsInf(kmh, 0) {
		return 0
	}
	return int(math.Round(kmh))
}
