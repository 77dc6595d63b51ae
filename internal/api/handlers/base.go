// Package handlers implements the HTTP endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/sghiouri-mohammed/Bills-Fact-Matching/internal/api/dto"
)

// maxBodyBytes caps request bodies; ledgers are sent inline.
const maxBodyBytes = 32 << 20

// Base provides shared functionality for all handlers.
type Base struct{}

// WriteJSON writes a JSON response with the given status code.
func (b *Base) WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error response with the given status code.
func (b *Base) WriteError(w http.ResponseWriter, status int, err dto.APIError) {
	b.WriteJSON(w, status, err)
}

// DecodeJSON reads the request body into v, rejecting unknown trailing data.
// It writes a 400 response and returns false on failure.
func (b *Base) DecodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)

	if err := dec.Decode(v); err != nil {
		msg := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		b.WriteError(w, http.StatusBadRequest, dto.BadRequestError(fmt.Sprintf("%s: %v", msg, err)))
		return false
	}
	if dec.More() {
		b.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid JSON body: unexpected data after object"))
		return false
	}
	return true
}

// ParseIntParam parses an integer query parameter with a default value.
func ParseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}
