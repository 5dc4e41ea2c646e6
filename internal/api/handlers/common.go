// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/holiday-engine/backend/internal/api/middleware"
	"github.com/holiday-engine/backend/internal/calendar"
	"github.com/holiday-engine/backend/internal/holiday"
	"github.com/holiday-engine/backend/internal/log"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("encoding response", "error", err.Error())
	}
}

// decodeBody decodes and validates a JSON body into dst, writing the error
// response itself when it returns false. An empty body decodes to the zero
// value and is then validated.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
		return
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	middleware.WriteErrorWithDetails(w, http.StatusBadRequest, middleware.ErrValidation, "Validation failed", fields)
}

// writeEngineError maps engine errors to status codes. Anything unexpected is
// logged and reported as a failure to do what.
func writeEngineError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, holiday.ErrRuleNotFound), errors.Is(err, holiday.ErrUnknownDefaults):
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, err.Error())
	case errors.Is(err, holiday.ErrInvalidRule), errors.Is(err, holiday.ErrInvalidRegion):
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
	case errors.Is(err, holiday.ErrRuleExists),
		errors.Is(err, holiday.ErrStaleState),
		errors.Is(err, holiday.ErrNotDeletable),
		errors.Is(err, holiday.ErrNotResettable),
		errors.Is(err, holiday.ErrInvalidTransition):
		middleware.WriteError(w, http.StatusConflict, middleware.ErrConflict, err.Error())
	default:
		log.Error("failed to "+what, err)
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to "+what)
	}
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return n, nil
}

// Clock returns the current civil date in the service's location.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

func (c Clock) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Today is the civil date in c's location.
func (c Clock) Today() calendar.Date {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return calendar.DateOf(c.now().In(loc))
}
