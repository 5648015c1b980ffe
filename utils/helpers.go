package utils

import (
	"strconv"
)

// ===================================================================
// PARAMETER HELPERS
// ===================================================================

// GetIntOrDefault returns value if valid, otherwise returns defaultValue
func GetIntOrDefault(valueStr string, defaultValue int) int {
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// GetLimit parses a list limit, falling back to defaultLimit and capping at maxLimit.
func GetLimit(limitStr string, defaultLimit, maxLimit int) int {
	limit := GetIntOrDefault(limitStr, defaultLimit)
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// ===================================================================
// RESPONSE HELPERS
// ===================================================================

// StandardResponse represents a standard API response
type StandardResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse creates an error response
func ErrorResponse(message string) StandardResponse {
	return StandardResponse{
		Status:  "error",
		Message: message,
	}
}

// ListResponse represents a list response
type ListResponse struct {
	Items interface{} `json:"items"`
	Count int         `json:"count"`
	Total int64       `json:"total"`
	Limit int         `json:"limit,omitempty"`
}

// CreateListResponse creates a standardized list response
func CreateListResponse(items interface{}, count, limit int, total int64) ListResponse {
	return ListResponse{
		Items: items,
		Count: count,
		Total: total,
		Limit: limit,
	}
}
