package response

// Response is the envelope every endpoint answers with.
type Response struct {
	Status     string `json:"status"`      // "success" or "error"
	StatusCode int    `json:"status_code"` // HTTP status code
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	Retryable  bool   `json:"retryable,omitempty"`
}

// Page is the data of a paginated listing.
type Page struct {
	Items       any   `json:"items"`
	Total       int64 `json:"total"`
	Pages       int   `json:"pages"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
}

// Success returns a success response wrapping data.
func Success(statusCode int, data any) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error returns an error response carrying a client-safe message.
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// RetryableError marks an error the client may retry unchanged.
func RetryableError(statusCode int, err string) Response {
	r := Error(statusCode, err)
	r.Retryable = true
	return r
}
