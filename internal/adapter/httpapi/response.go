package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"task-agent/internal/domain/entity"
)

const maxRequestBodyBytes = 1 << 20

const (
	defaultPage     = 1
	defaultPageSize = 10
	maxPageSize     = 100
	maxPage         = 1 << 20
)

const (
	errorCodeInvalidRequest = "invalid_request"
	errorCodeNotFound       = "not_found"
	errorCodeConflict       = "conflict"
	errorCodeForbidden      = "forbidden"
	errorCodeRuntime        = "runtime_error"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, code := mapError(err)
	writeError(w, status, code, err.Error())
}

func writeInvalidRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, errorCodeInvalidRequest, message)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiErrorResponse{
		Error: apiError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSONBody reads one JSON object. An empty body is accepted when
// optional is set and leaves dst untouched.
func decodeJSONBody(r *http.Request, dst any, optional bool) error {
	if r.Body == nil || r.Body == http.NoBody {
		if optional {
			return nil
		}
		return errors.New("request body is required")
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			if optional {
				return nil
			}
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain exactly one JSON object")
	}
	return nil
}

// pageParams reads current_page and page_size from the query string.
func pageParams(r *http.Request) (int, int, error) {
	page, err := intParam(r, "current_page", defaultPage)
	if err != nil {
		return 0, 0, err
	}
	if page > maxPage {
		return 0, 0, fmt.Errorf("current_page must not exceed %d", maxPage)
	}
	size, err := intParam(r, "page_size", defaultPageSize)
	if err != nil {
		return 0, 0, err
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return v, nil
}

func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound, errorCodeNotFound
	case errors.Is(err, entity.ErrTaskFinished),
		errors.Is(err, entity.ErrInconsistentState),
		errors.Is(err, entity.ErrStatusRegression):
		return http.StatusConflict, errorCodeConflict
	case errors.Is(err, entity.ErrSandboxViolation):
		return http.StatusForbidden, errorCodeForbidden
	case errors.Is(err, entity.ErrInvalidArgument),
		errors.Is(err, entity.ErrUnknownAction):
		return http.StatusBadRequest, errorCodeInvalidRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusInternalServerError, errorCodeRuntime
	default:
		return http.StatusInternalServerError, errorCodeRuntime
	}
}
