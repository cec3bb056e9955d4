// Package weather provides the weather observation interface for the feature
// extractor. Live API integration is out of scope; the stub provider returns
// fixed placeholder values until an external provider is wired in.
package weather

// Observation holds the weather fields consumed by the feature extractor.
type Observation struct {
	RainfallForecastMm float64
	HumidityPct        float64
	TemperatureC       float64
}

// Provider represents a weather data provider interface
type Provider interface {
	Fetch(latitude, longitude float64) (Observation, error)
}

// Placeholder sentinels, stable so feature vectors stay deterministic.
const (
	stubRainfallMm   = 0.0
	stubHumidityPct  = 50.0
	stubTemperatureC = 25.0
)

// StubProvider returns placeholder observations regardless of location.
type StubProvider struct{}

// NewStubProvider creates the stub weather provider.
func NewStubProvider() *StubProvider {
	return &StubProvider{}
}

// Fetch returns the fixed placeholder observation.
func (p *StubProvider) Fetch(latitude, longitude float64) (Observation, error) {
	return Observation{
		RainfallForecastMm: stubRainfallMm,
		HumidityPct:        stubHumidityPct,
		TemperatureC:       stubTemperatureC,
	}, nil
}
