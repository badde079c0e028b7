// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating request data.
// Bodies may be JSON objects or form-encoded.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mahal/internal/core"
	"mahal/internal/services"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

var errBodyTooLarge = errors.New("request body too large")

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = errBodyTooLarge
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = fmt.Errorf("invalid JSON body: %w", err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Has reports whether key was present in the body.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	_, ok := p.formData[key]
	return ok
}

// GetInt parses key as an int. A missing key yields def.
func (p *RequestBodyParser) GetInt(key string, def int) (int, error) {
	v := p.Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, core.NewValidationError(key, "must be a whole number")
	}
	return n, nil
}

// GetID parses key as an optional positive id.
func (p *RequestBodyParser) GetID(key string) (*int64, error) {
	v := p.Get(key)
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return nil, core.NewValidationError(key, "must be a positive id")
	}
	return &id, nil
}

// GetDate parses key as YYYY-MM-DD or RFC 3339. A missing key yields the
// zero time.
func (p *RequestBodyParser) GetDate(key string) (time.Time, error) {
	v := p.Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := parseDate(v)
	if err != nil {
		return time.Time{}, core.NewValidationError(key, "must be a date like 2025-01-31")
	}
	return t, nil
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// parseBody reads and parses r's body, writing a 400 on failure.
func parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		ErrorResponse(status, err.Error()).Write(w)
		return nil, false
	}
	return p, true
}

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewValidationError("id", "must be a positive id")
	}
	return id, nil
}

// memberFromBody reads the member payload.
func memberFromBody(p *RequestBodyParser) (core.Member, error) {
	age, err := p.GetInt("age", 0)
	if err != nil {
		return core.Member{}, err
	}
	family, err := p.GetInt("familyMembers", 0)
	if err != nil {
		return core.Member{}, err
	}
	return core.Member{
		RegistrationCode: p.Get("registrationCode"),
		Name:             p.Get("name"),
		Age:              age,
		Phone:            p.Get("phone"),
		NationalID:       p.Get("nationalId"),
		HouseName:        p.Get("houseName"),
		Address:          p.Get("address"),
		FamilyMembers:    family,
	}, nil
}

// userFromBody reads the user registration payload and its password.
func userFromBody(p *RequestBodyParser) (core.User, string) {
	return core.User{
		RegistrationCode: p.Get("registrationCode"),
		Name:             p.Get("name"),
		Email:            strings.ToLower(p.Get("email")),
		Phone:            p.Get("phone"),
		Role:             core.Role(p.Get("role")),
	}, p.Get("password")
}

// collectionFromBody reads the collection payload.
func collectionFromBody(p *RequestBodyParser) (services.CollectionInput, error) {
	amount, err := core.ParseMoney(p.Get("amount"))
	if err != nil {
		return services.CollectionInput{}, core.NewValidationError("amount", "amount must be a positive decimal")
	}
	memberID, err := p.GetID("memberId")
	if err != nil {
		return services.CollectionInput{}, err
	}
	date, err := p.GetDate("date")
	if err != nil {
		return services.CollectionInput{}, err
	}
	return services.CollectionInput{
		Amount:        amount,
		Description:   p.Get("description"),
		Category:      p.Get("category"),
		FundType:      p.Get("fundType"),
		CollectedBy:   p.Get("collectedBy"),
		MemberID:      memberID,
		Date:          date,
		ReceiptNumber: p.Get("receiptNumber"),
	}, nil
}

// parseLimit reads the optional limit query parameter. Zero means default.
func parseLimit(q url.Values) (int, error) {
	v := strings.TrimSpace(q.Get("limit"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, core.NewValidationError("limit", "must be a whole number")
	}
	return n, nil
}
