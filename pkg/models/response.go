// Package models defines the wire-level payloads of the HTTP API.
package models

// ProcessingResponse is the envelope for successful inference responses.
type ProcessingResponse struct {
	Success         bool             `json:"success"`
	ImagesProcessed int              `json:"images_processed"`
	Results         []map[string]any `json:"results"`
	Message         string           `json:"message,omitempty"`
}

// ErrorResponse is the envelope for failed requests.
type ErrorResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status         string `json:"status"`
	PipelineLoaded bool   `json:"pipeline_loaded"`
}
