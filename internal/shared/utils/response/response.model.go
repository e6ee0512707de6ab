package response

// StandardApiResponse is the envelope every endpoint answers with. Errors
// carries either a field map (validation) or a machine-readable reason object.
type StandardApiResponse struct {
	Status     string      `json:"status"` // "success" or "error"
	StatusCode int         `json:"status_code"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Errors     interface{} `json:"errors,omitempty"`
}
