package handler

// ErrorResponse is the failure body. Error is shown to users verbatim.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
