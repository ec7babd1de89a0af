// Package httpx is the single transport boundary: it encodes every response
// in the `{code, msg, data}` envelope and translates domain errors to HTTP
// status codes. No package below this one formats transport-level bodies.
package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform response body.
type Envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

// JSON sends a response envelope with the given HTTP status.
func JSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// OK sends a 200 envelope wrapping data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Envelope{Code: http.StatusOK, Msg: "ok", Data: data})
}

// Created sends a 201 envelope wrapping data.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, Envelope{Code: http.StatusCreated, Msg: "created", Data: data})
}

// Fail sends an error envelope with matching HTTP status and machine code.
func Fail(w http.ResponseWriter, status, code int, msg string) {
	JSON(w, status, Envelope{Code: code, Msg: msg})
}

// DecodeJSON decodes a JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
