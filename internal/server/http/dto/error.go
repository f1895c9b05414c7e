package dto

// ErrorResponse carries a stable machine-readable error code.
type ErrorResponse struct {
	Error string `json:"error"`
}
