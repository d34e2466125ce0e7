package http

// APIResponse is the envelope every JSON endpoint writes.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError describes one failed request field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"resolution"`
	Message string                 `json:"message,omitempty" example:"resolution is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}
