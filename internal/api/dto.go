package api

// SuccessResponse is the envelope of every successful action.
type SuccessResponse struct {
	Help    string `json:"help" example:"Returns a list of tags" validate:"required"`
	Success bool   `json:"success" example:"true" validate:"required"`
	Result  any    `json:"result"`
}

// ErrorResponse is the envelope of a failed action. Error always carries
// __type; validation failures add one entry per rejected field.
type ErrorResponse struct {
	Help    string         `json:"help"`
	Success bool           `json:"success" example:"false" validate:"required"`
	Error   map[string]any `json:"error" validate:"required"`
}
