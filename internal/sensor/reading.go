package sensor

import "time"

// Anomaly kinds injected by the generator.
const (
	AnomalySensorDrift          = "sensor_drift"
	AnomalyEnvironmentalEvent   = "environmental_event"
	AnomalyEquipmentMalfunction = "equipment_malfunction"
)

// Reading is one synthetic multi-sensor sample.
type Reading struct {
	Location       string    `json:"location"`
	Timestamp      time.Time `json:"timestamp"`
	Temperature    float64   `json:"temperature"`
	Humidity       float64   `json:"humidity"`
	Pressure       float64   `json:"pressure"`
	AirQuality     float64   `json:"air_quality"`
	BatteryLevel   float64   `json:"battery_level"`
	SignalStrength float64   `json:"signal_strength"`
	Anomaly        string    `json:"anomaly,omitempty"`
}

// TaskData is the analytics payload attached to normal-operation tasks.
type TaskData struct {
	SensorReadings    []Reading `json:"sensor_readings"`
	TimeWindow        int       `json:"time_window"`
	AnalysisDepth     string    `json:"analysis_depth"`
	HistoricalContext int       `json:"historical_context"`
}
