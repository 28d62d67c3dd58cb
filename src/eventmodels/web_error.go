package eventmodels

// WebError carries the HTTP status a handler should answer with. Message is
// the short context shown to clients; Cause keeps the wrapped chain so that
// callers can still match sentinels with errors.Is.
type WebError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"type"`
	Cause      error  `json:"-"`
}

type WebErrorResponse struct {
	Type string `json:"type"`
	Msg  string `json:"message"`
}

func (e *WebError) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}

	return e.Message
}

func (e *WebError) Unwrap() error {
	return e.Cause
}

func (e *WebError) Response() WebErrorResponse {
	return WebErrorResponse{Type: e.Message, Msg: e.Error()}
}

func NewWebError(statusCode int, message string, cause error) *WebError {
	return &WebError{
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}
