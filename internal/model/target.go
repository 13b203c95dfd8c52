package model

import (
	"time"

	"github.com/google/uuid"
)

// TargetRecord is one row of a client's target history.
type TargetRecord struct {
	ID        int64     `json:"id" yaml:"id"`
	ClientID  int64     `json:"client_id" yaml:"client_id"`
	Metric    string    `json:"metric" yaml:"metric"`
	Value     float64   `json:"target_value" yaml:"target_value"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// ComparisonStatus describes how an actual value relates to its target.
type ComparisonStatus string

const (
	StatusAbove    ComparisonStatus = "above"
	StatusBelow    ComparisonStatus = "below"
	StatusEqual    ComparisonStatus = "equal"
	StatusNoTarget ComparisonStatus = "no_target"
)

// Comparison is derived from an actual value and its current target.
type Comparison struct {
	Status      ComparisonStatus `json:"status" yaml:"status"`
	Percentage  float64          `json:"percentage" yaml:"percentage"`
	DisplayText string           `json:"display_text" yaml:"display_text"`
}

// MetricView is a metric value merged with its target.
type MetricView struct {
	Key        string         `json:"key" yaml:"key"`
	Metadata   MetricMetadata `json:"metadata" yaml:"metadata"`
	Value      *float64       `json:"value" yaml:"value"`
	Formatted  string         `json:"formatted_value" yaml:"formatted_value"`
	Target     *float64       `json:"target" yaml:"target"`
	Comparison Comparison     `json:"comparison" yaml:"comparison"`
}

// Snapshot is everything a dashboard renders for one client, computed in a
// fixed number of round trips.
type Snapshot struct {
	ID          uuid.UUID               `json:"id" yaml:"id"`
	ClientID    int64                   `json:"client_id" yaml:"client_id"`
	ClientName  string                  `json:"client_name" yaml:"client_name"`
	ComputedAt  time.Time               `json:"computed_at" yaml:"computed_at"`
	Metrics     Grouped                 `json:"metrics" yaml:"metrics"`
	Targets     map[string]float64      `json:"targets" yaml:"targets"`
	Comparisons map[string]Comparison   `json:"comparisons" yaml:"comparisons"`
	Charts      map[string][]ChartPoint `json:"charts" yaml:"charts"`
}
