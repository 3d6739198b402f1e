package errx

import "errors"

// HTTPErrorResponse is the JSON body written for failed requests
type HTTPErrorResponse struct {
	Error     string                 `json:"error"`
	Code      string                 `json:"code"`
	Type      string                 `json:"type"`
	Status    int                    `json:"status"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// ToHTTPResponse converts an Error to an HTTPErrorResponse
func (e *Error) ToHTTPResponse() HTTPErrorResponse {
	resp := HTTPErrorResponse{
		Error:  e.Message,
		Code:   e.Code,
		Type:   string(e.Type),
		Status: e.HTTPStatus,
	}
	if len(e.Details) > 0 {
		resp.Details = e.Details
	}
	return resp
}

// FromError converts any error into a response. Errors outside the
// registry become a generic internal error so causes never leak.
func FromError(err error) HTTPErrorResponse {
	var e *Error
	if errors.As(err, &e) {
		return e.ToHTTPResponse()
	}
	return New("internal server error", TypeInternal).ToHTTPResponse()
}
