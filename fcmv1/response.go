package fcmv1

import (
	"encoding/json"
)

const Provider = "fcmv1"

// ResponseBody fcm response body
type ResponseBody struct {
	Name  string     `json:"name,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
}

// ErrorBody is the error object of fcm response
type ErrorBody struct {
	Code    int      `json:"code,omitempty"`
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Details []Detail `json:"details,omitempty"`
}

type Detail struct {
	Type      string `json:"@type"`
	ErrorCode string `json:"errorCode,omitempty"`
}

// Result is the status of a processed FCMResponse
type Result struct {
	StatusCode int    `json:"status,omitempty"`
	Token      string `json:"token,omitempty"`
	Name       string `json:"name,omitempty"`
	Error      *Error `json:"error,omitempty"`
}

func (r Result) Err() error {
	if r.Error != nil {
		return *r.Error
	}
	return nil
}

func (r Result) Status() int {
	return r.StatusCode
}

func (r Result) RecipientIdentifier() string {
	return r.Token
}

func (r Result) ExtraKeys() []string {
	return []string{"name", "error_status", "message"}
}

func (r Result) Provider() string {
	return Provider
}

func (r Result) ExtraValue(key string) string {
	switch key {
	case "name":
		return r.Name
	case "error_status":
		if r.Error != nil {
			return r.Error.Status()
		}
	case "message":
		if r.Error != nil {
			return r.Error.Error()
		}
	}
	return ""
}

func (r Result) MarshalJSON() ([]byte, error) {
	type Alias Result
	return json.Marshal(struct {
		Provider string `json:"provider"`
		Alias
	}{
		Provider: Provider,
		Alias:    (Alias)(r),
	})
}
