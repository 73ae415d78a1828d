// Package sensor produces realistic synthetic readings for the locations
// of an edge deployment.
package sensor

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

const (
	anomalyProbability     = 0.05
	ventilationProbability = 0.1
	malfunctionProbability = 0.5
	weatherCycleSeconds    = 86400.0
)

var analysisDepths = []string{"basic", "detailed", "comprehensive"}

// Generator is safe for concurrent use.
type Generator struct {
	mu        sync.Mutex
	rng       *rand.Rand
	profiles  map[string]Profile
	locations []string
	now       func() time.Time
}

type Option func(*Generator)

// WithRand replaces the time-seeded random source.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) { g.rng = r }
}

// WithProfiles replaces the built-in profiles. locations fixes the order
// used by TaskData.
func WithProfiles(profiles map[string]Profile, locations []string) Option {
	return func(g *Generator) {
		g.profiles = profiles
		g.locations = locations
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		profiles:  DefaultProfiles(),
		locations: DefaultLocations(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Profile returns the profile for location, falling back to the office.
func (g *Generator) Profile(location string) Profile {
	if p, ok := g.profiles[location]; ok {
		return p
	}
	if p, ok := g.profiles[Office]; ok {
		return p
	}
	return DefaultProfiles()[Office]
}

// Generate produces one reading for location at ts (now when zero).
func (g *Generator) Generate(location string, ts time.Time) Reading {
	if ts.IsZero() {
		ts = g.now()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	return g.generate(location, ts)
}

// GenerateBatch returns count readings ending at now, spaced by interval,
// oldest first.
func (g *Generator) GenerateBatch(location string, count int, interval time.Duration) []Reading {
	if count <= 0 {
		return nil
	}

	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	batch := make([]Reading, 0, count)
	for i := 0; i < count; i++ {
		ts := now.Add(-time.Duration(count-i-1) * interval)
		batch = append(batch, g.generate(location, ts))
	}
	return batch
}

// TaskData builds the payload of an analytics task.
func (g *Generator) TaskData() TaskData {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	readings := make([]Reading, 0, len(g.locations))
	for _, loc := range g.locations {
		readings = append(readings, g.generate(loc, now))
	}

	return TaskData{
		SensorReadings:    readings,
		TimeWindow:        60 + g.rng.Intn(3600-60+1),
		AnalysisDepth:     analysisDepths[g.rng.Intn(len(analysisDepths))],
		HistoricalContext: 1 + g.rng.Intn(24),
	}
}

func (g *Generator) generate(location string, ts time.Time) Reading {
	p := g.Profile(location)
	hour := ts.Hour()

	temperature := g.temperature(p, hour)
	humidity := g.humidity(p, hour)
	pressure := g.pressure(p, ts)
	airQuality := g.airQuality(p, hour)

	var anomaly string
	if g.rng.Float64() < anomalyProbability {
		anomaly, temperature, humidity, airQuality = g.injectAnomaly(location, temperature, humidity, airQuality)
	}

	env := p.Envelope()

	return Reading{
		Location:       location,
		Timestamp:      ts,
		Temperature:    round2(clamp(temperature, env["temperature"])),
		Humidity:       round2(clamp(humidity, env["humidity"])),
		Pressure:       round2(clamp(pressure, env["pressure"])),
		AirQuality:     round2(clamp(airQuality, env["air_quality"])),
		BatteryLevel:   g.uniform(85, 100),
		SignalStrength: g.uniform(-60, -30),
		Anomaly:        anomaly,
	}
}

// diurnal peaks around 14:00.
func diurnal(hour int, amplitude float64) float64 {
	return amplitude * math.Sin(float64(hour-6)*math.Pi/12)
}

func (g *Generator) temperature(p Profile, hour int) float64 {
	var activity float64
	switch p.Activity {
	case BusinessHours:
		if businessHours[hour] {
			activity = g.uniform(0.5, 2.0)
		} else {
			activity = g.uniform(-0.5, 0.5)
		}
	case MealTimes:
		if mealHours[hour] {
			activity = g.uniform(2.0, 5.0)
		} else {
			activity = g.uniform(-0.5, 0.5)
		}
	case Transit:
		activity = g.uniform(-0.2, 0.8)
	}

	return p.Temperature.Mid() + diurnal(hour, 2) + activity + g.uniform(-0.5, 0.5)
}

func (g *Generator) humidity(p Profile, hour int) float64 {
	var activity float64
	if p.Activity == MealTimes {
		if mealHours[hour] {
			activity = g.uniform(5, 15)
		} else {
			activity = g.uniform(-2, 2)
		}
	} else {
		activity = g.uniform(-1, 3)
	}

	return p.Humidity.Mid() + diurnal(hour, -1.5) + activity + g.uniform(-2, 2)
}

func (g *Generator) pressure(p Profile, ts time.Time) float64 {
	seconds := float64(ts.UnixNano()) / float64(time.Second)
	weather := 3 * math.Sin(seconds/weatherCycleSeconds*math.Pi/3)

	return p.Pressure.Mid() + weather + g.uniform(-1, 1)
}

func (g *Generator) airQuality(p Profile, hour int) float64 {
	var activity float64
	switch p.Activity {
	case BusinessHours:
		if businessHours[hour] {
			activity = g.uniform(10, 30)
		} else {
			activity = g.uniform(-5, 5)
		}
	case MealTimes:
		if mealHours[hour] {
			activity = g.uniform(20, 60)
		} else {
			activity = g.uniform(-10, 10)
		}
	default:
		activity = g.uniform(-5, 15)
	}

	var ventilation float64
	if g.rng.Float64() < ventilationProbability {
		ventilation = g.uniform(-20, -5)
	}

	return p.AirQuality.Mid() + activity + ventilation + g.uniform(-10, 10)
}

func (g *Generator) injectAnomaly(location string, temperature, humidity, airQuality float64) (string, float64, float64, float64) {
	kinds := []string{AnomalySensorDrift, AnomalyEnvironmentalEvent, AnomalyEquipmentMalfunction}
	kind := kinds[g.rng.Intn(len(kinds))]

	switch kind {
	case AnomalySensorDrift:
		drift := g.uniform(0.5, 3.0)
		temperature += drift
		humidity += drift * 2
	case AnomalyEnvironmentalEvent:
		switch location {
		case Kitchen:
			temperature += g.uniform(3, 8)
			humidity += g.uniform(10, 25)
			airQuality += g.uniform(50, 150)
		case Office:
			temperature += g.uniform(-5, 5)
			airQuality += g.uniform(20, 80)
		default:
			temperature += g.uniform(-3, 3)
			humidity += g.uniform(-10, 10)
		}
	case AnomalyEquipmentMalfunction:
		if g.rng.Float64() < malfunctionProbability {
			temperature = g.uniform(-10, 50)
		}
		if g.rng.Float64() < malfunctionProbability {
			airQuality = g.uniform(500, 1000)
		}
	}

	return kind, temperature, humidity, airQuality
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func clamp(v float64, r Range) float64 {
	return math.Max(r.Min, math.Min(r.Max, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
