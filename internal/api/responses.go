package api

import "github.com/gin-gonic/gin"

// Response is the uniform message envelope returned by every endpoint.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// respondOK sends a success envelope.
func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, Response{Success: true, Data: data})
}

// respondError sends a failure envelope.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Success: false, Error: message})
}

// ObserveResponse acknowledges a page-state observation.
type ObserveResponse struct {
	Received   bool `json:"received"`
	IsTracking bool `json:"isTracking"`
}

// ClearResponse acknowledges a data wipe.
type ClearResponse struct {
	Cleared bool `json:"cleared"`
}

// ToggleResponse carries the tracking toggle's new value.
type ToggleResponse struct {
	IsTracking bool `json:"isTracking"`
}
