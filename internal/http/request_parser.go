package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"cardbill/internal/core"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object into dst, rejecting unknown fields,
// trailing data and bodies over maxBodyBytes.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return badRequest("request body is empty")
		case errors.As(err, &syntaxErr):
			return badRequest(fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset))
		case errors.As(err, &typeErr):
			return badRequest(fmt.Sprintf("invalid value for field %q", typeErr.Field))
		case errors.As(err, &maxErr):
			return badRequest("request body too large")
		case errors.Is(err, core.ErrInvalidAmount):
			// totalValue is the only money field any request carries
			return &core.ValidationError{Field: "totalValue", Err: core.ErrInvalidAmount}
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return badRequest(strings.TrimPrefix(err.Error(), "json: "))
		default:
			return badRequest("malformed JSON: " + err.Error())
		}
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest(fmt.Sprintf("invalid %s %q", name, raw))
	}
	return id, nil
}

// pathMonth parses a YYYY-MM path parameter.
func pathMonth(r *http.Request, name string) (core.Month, error) {
	raw := r.PathValue(name)
	m, err := core.ParseMonth(raw)
	if err != nil {
		return core.Month{}, badRequest(fmt.Sprintf("invalid month %q: expected YYYY-MM", raw))
	}
	return m, nil
}

// parseInstallmentFilter reads the optional cardId and month query parameters.
func parseInstallmentFilter(r *http.Request) (core.InstallmentFilter, error) {
	var f core.InstallmentFilter
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("cardId")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return f, badRequest(fmt.Sprintf("invalid cardId %q", v))
		}
		f.CardID = id
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		m, err := core.ParseMonth(v)
		if err != nil {
			return f, badRequest(fmt.Sprintf("invalid month %q: expected YYYY-MM", v))
		}
		f.Month = m
	}
	return f, nil
}

// parsePurchaseDate accepts YYYY-MM-DD; a malformed date is a field error, not a bad request.
func parsePurchaseDate(s string) (core.Date, error) {
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: "purchaseDate", Err: errors.New("expected YYYY-MM-DD")}
	}
	return d, nil
}
