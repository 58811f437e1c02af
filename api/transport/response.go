package transport

import "encoding/json"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope wraps every API answer. Errors carry a machine code and a
// human message; lists carry PageMeta.
type Envelope struct {
	Status string `json:"status"`
	Code   string `json:"code,omitempty"`
	Data   any    `json:"data,omitempty"`
	Error  any    `json:"error,omitempty"`
	Meta   any    `json:"meta,omitempty"`
}

// RawEnvelope is the receiving side of Envelope, leaving the payloads
// undecoded until the caller knows their type.
type RawEnvelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Error  json.RawMessage `json:"error"`
	Meta   json.RawMessage `json:"meta"`
}

// Failed reports whether the envelope describes an error.
func (e RawEnvelope) Failed() bool {
	return e.Status == StatusError
}

// Message returns the error message, falling back to the raw JSON when the
// error is not a plain string.
func (e RawEnvelope) Message() string {
	var message string
	if err := json.Unmarshal(e.Error, &message); err == nil {
		return message
	}
	return string(e.Error)
}

func NewSuccess(data any, meta any) Envelope {
	return Envelope{Status: StatusSuccess, Data: data, Meta: meta}
}

func NewError(code string, message any, meta any) Envelope {
	return Envelope{Status: StatusError, Code: code, Error: message, Meta: meta}
}

// PageMeta describes a list page.
type PageMeta struct {
	Count  int `json:"count"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func NewPage(data any, count, limit, offset int) Envelope {
	return NewSuccess(data, PageMeta{Count: count, Limit: limit, Offset: offset})
}

// Bytes marshals the envelope, falling back to a bare error envelope.
func (e Envelope) Bytes() []byte {
	out, err := json.Marshal(e)
	if err != nil {
		return []byte(`{"status":"error","code":"INTERNAL"}`)
	}
	return out
}
