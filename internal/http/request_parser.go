// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// month/year query parameters, boolean flags and JSON bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"orcamento/internal/core"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// ParsePeriodQuery reads month and year from the query string. Absent values
// default to the current UTC month; present values must be integers.
func ParsePeriodQuery(q url.Values, now time.Time) (core.Period, error) {
	now = now.UTC()
	p := core.Period{Month: int(now.Month()), Year: now.Year()}

	var err error
	if p.Month, err = intParam(q, "month", p.Month); err != nil {
		return core.Period{}, err
	}
	if p.Year, err = intParam(q, "year", p.Year); err != nil {
		return core.Period{}, err
	}
	if err := p.Validate(); err != nil {
		return core.Period{}, err
	}
	return p, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &core.ValidationError{Field: name, Message: fmt.Sprintf("%s must be an integer, got %q", name, v), Err: err}
	}
	return n, nil
}

// ParseBoolParam reads an optional boolean flag. Accepts the strconv.ParseBool
// spellings plus "yes"/"no" and "on"/"off".
func ParseBoolParam(q url.Values, name string, def bool) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(q.Get(name)))
	switch v {
	case "":
		return def, nil
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &core.ValidationError{Field: name, Message: fmt.Sprintf("%s must be a boolean, got %q", name, v), Err: err}
	}
	return b, nil
}

// DecodeJSON decodes a single JSON object from the request body into dst.
// Empty, oversized, malformed or trailing-garbage bodies yield a bad request.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return &badRequest{msg: "request body is empty", err: err}
		case errors.As(err, &maxErr):
			return &badRequest{msg: "request body is too large", err: err}
		default:
			return &badRequest{msg: "malformed JSON body: " + err.Error(), err: err}
		}
	}
	if dec.More() {
		return &badRequest{msg: "request body must hold a single JSON object"}
	}
	return nil
}

// ParseCategoryID reads a positive category id from a path segment.
func ParseCategoryID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, &core.ValidationError{Field: "category_id", Message: fmt.Sprintf("category id %q must be a positive integer", raw), Err: err}
	}
	return id, nil
}

// amountField parses a JSON amount, reporting failures against field.
func amountField(raw json.RawMessage, field string) (core.Money, error) {
	m, err := core.ParseAmountJSON(raw)
	if err != nil {
		return core.Money{}, &core.ValidationError{
			Field:   field,
			Message: field + " must be a non-negative decimal amount",
			Err:     err,
		}
	}
	return m, nil
}
