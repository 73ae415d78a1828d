package scenario

import (
	"time"

	"codeberg.org/mutker/edgebench/internal/sensor"
	"github.com/google/uuid"
)

// Task is the JSON body posted to task endpoints.
type Task struct {
	ID         string           `json:"id"`
	Type       string           `json:"type"`
	Location   string           `json:"location"`
	Priority   string           `json:"priority,omitempty"`
	Complexity string           `json:"complexity,omitempty"`
	Data       *sensor.TaskData `json:"data,omitempty"`
	DataSize   int              `json:"data_size,omitempty"`
	SensorData *sensor.Reading  `json:"sensor_data,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

// Pacing is the range a pause between two tasks is drawn from.
type Pacing struct {
	Min time.Duration
	Max time.Duration
}

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"

	ComplexitySimple  = "simple"
	ComplexityMedium  = "medium"
	ComplexityComplex = "complex"

	TaskEnvironmentalAnalysis = "environmental_analysis"
)

var (
	normalTaskTypes = []string{
		TaskEnvironmentalAnalysis,
		"anomaly_detection",
		"air_quality_assessment",
		"comfort_optimization",
		"predictive_maintenance",
	}

	priorities    = []string{PriorityLow, PriorityMedium, PriorityHigh}
	priorityBonus = map[string]float64{PriorityLow: 0, PriorityMedium: 2, PriorityHigh: 5}

	taskPools = map[string][]string{
		ComplexitySimple:  {"sensor_reading", "basic_analysis"},
		ComplexityMedium:  {"anomaly_detection", "trend_analysis", "prediction"},
		ComplexityComplex: {"deep_analysis", "ml_inference", "optimization", "correlation_analysis"},
	}
)

func newTaskID() string {
	return uuid.NewString()
}

// TaskTypes returns the task types drawn for a complexity level.
func TaskTypes(complexity string) []string {
	return append([]string(nil), taskPools[complexity]...)
}
