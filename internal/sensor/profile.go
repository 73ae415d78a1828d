package sensor

// Activity tags control time-of-day variation.
type Activity string

const (
	BusinessHours Activity = "business_hours"
	MealTimes     Activity = "meal_times"
	Transit       Activity = "transit"
)

// Known locations.
const (
	Office  = "office"
	Kitchen = "kitchen"
	Hallway = "hallway"
)

// Range is an inclusive min/max pair.
type Range struct {
	Min float64 `mapstructure:"min" json:"min"`
	Max float64 `mapstructure:"max" json:"max"`
}

func (r Range) Mid() float64 { return (r.Min + r.Max) / 2 }

// Profile holds the static envelope of one location.
type Profile struct {
	Temperature Range    `mapstructure:"temperature" json:"temperature"`
	Humidity    Range    `mapstructure:"humidity" json:"humidity"`
	Pressure    Range    `mapstructure:"pressure" json:"pressure"`
	AirQuality  Range    `mapstructure:"air_quality" json:"air_quality"`
	Activity    Activity `mapstructure:"activity" json:"activity"`
}

// Slack applied around each profile range by the final clamp.
type slack struct{ below, above float64 }

var (
	temperatureSlack = slack{2, 2}
	humiditySlack    = slack{5, 5}
	pressureSlack    = slack{5, 5}
	airQualitySlack  = slack{20, 50}
)

// Envelope returns the clamp bounds of each field for a profile.
func (p Profile) Envelope() map[string]Range {
	return map[string]Range{
		"temperature": widen(p.Temperature, temperatureSlack),
		"humidity":    widen(p.Humidity, humiditySlack),
		"pressure":    widen(p.Pressure, pressureSlack),
		"air_quality": widen(p.AirQuality, airQualitySlack),
	}
}

func widen(r Range, s slack) Range {
	return Range{Min: r.Min - s.below, Max: r.Max + s.above}
}

// DefaultProfiles returns the built-in location profiles.
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		Office: {
			Temperature: Range{20, 26},
			Humidity:    Range{30, 60},
			Pressure:    Range{1010, 1020},
			AirQuality:  Range{50, 200},
			Activity:    BusinessHours,
		},
		Kitchen: {
			Temperature: Range{18, 35},
			Humidity:    Range{40, 80},
			Pressure:    Range{1008, 1018},
			AirQuality:  Range{80, 400},
			Activity:    MealTimes,
		},
		Hallway: {
			Temperature: Range{19, 24},
			Humidity:    Range{35, 55},
			Pressure:    Range{1012, 1022},
			AirQuality:  Range{30, 150},
			Activity:    Transit,
		},
	}
}

// DefaultLocations lists the built-in locations in their configured order.
func DefaultLocations() []string {
	return []string{Office, Kitchen, Hallway}
}

var mealHours = map[int]bool{7: true, 8: true, 12: true, 13: true, 18: true, 19: true, 20: true}

var businessHours = map[int]bool{9: true, 10: true, 11: true, 12: true, 13: true, 14: true, 15: true, 16: true, 17: true}
