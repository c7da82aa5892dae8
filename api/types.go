// Package api - API types for planning
// These types define the contract for the HTTP endpoints.
// API is stateless apart from the engine's result cache.
package api

import (
	"cu-planner/core/engine"
)

// PlanRequest is the input to POST /plan
type PlanRequest = engine.PlanRequest

// SweepRequest is the input to POST /sweep
type SweepRequest = engine.SweepRequest

// LogDeltaRequest is the input to POST /log-delta
type LogDeltaRequest struct {
	// Log holds one integer per line
	Log string `json:"log"`

	// Source names the log in the report
	Source string `json:"source,omitempty"`
}

// ScenarioInfo describes a registered scenario
type ScenarioInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ScenarioList is the output of GET /scenarios
type ScenarioList struct {
	Scenarios []ScenarioInfo `json:"scenarios"`
	Count     int            `json:"count"`
}

// ErrorBody is the error envelope of every failed request
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request
type ErrorDetail struct {
	// Code is the error type, e.g. INPUT_ERROR
	Code string `json:"code"`

	Message string `json:"message"`
}
