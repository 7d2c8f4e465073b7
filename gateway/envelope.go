package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Pagination is the optional paging block of a response envelope.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type envelope struct {
	Data       json.RawMessage `json:"data"`
	Pagination *Pagination     `json:"pagination,omitempty"`
}

type errorBody struct {
	Message string `json:"message"`
}

// Response is a successful reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Attempts is 2 when the request was replayed after a renewal.
	Attempts int
}

// Data returns the raw `data` member of the envelope. An empty body yields
// JSON null.
func (r *Response) Data() (json.RawMessage, error) {
	if len(r.Body) == 0 {
		return json.RawMessage("null"), nil
	}
	var env envelope
	if err := json.Unmarshal(r.Body, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Data == nil {
		return json.RawMessage("null"), nil
	}
	return env.Data, nil
}

// Pagination returns the envelope's paging block, if any.
func (r *Response) Pagination() (*Pagination, error) {
	if len(r.Body) == 0 {
		return nil, nil
	}
	var env envelope
	if err := json.Unmarshal(r.Body, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	return env.Pagination, nil
}

// Decode unmarshals the envelope's `data` into T.
func Decode[T any](r *Response) (T, error) {
	var out T
	data, err := r.Data()
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decoding data: %w", err)
	}
	return out, nil
}

// parseAPIError builds an APIError from a failed response body, falling
// back to the status text when the body has no message.
func parseAPIError(method, path string, status int, body []byte) *APIError {
	var eb errorBody
	msg := ""
	if json.Unmarshal(body, &eb) == nil {
		msg = eb.Message
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg, Method: method, Path: path}
}
