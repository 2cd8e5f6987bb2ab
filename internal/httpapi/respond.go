package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"investment-ledger-go/internal/api"
	"investment-ledger-go/internal/metrics"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Problem is the error body of every failed request
type Problem struct {
	Code    api.Code `json:"code"`
	Message string   `json:"message"`
}

var statusByCode = map[api.Code]int{
	api.CodeInsufficientFunds:      http.StatusUnprocessableEntity,
	api.CodeInsufficientEarnings:   http.StatusUnprocessableEntity,
	api.CodePlanRangeViolation:     http.StatusUnprocessableEntity,
	api.CodeInvalidStateTransition: http.StatusConflict,
	api.CodeDuplicateOperation:     http.StatusConflict,
	api.CodeConflict:               http.StatusConflict,
	api.CodeNotFound:               http.StatusNotFound,
	api.CodeUnauthorized:           http.StatusForbidden,
	api.CodeInvalidArgument:        http.StatusBadRequest,
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("Failed to encode response", zap.Error(err))
	}
}

func writeProblem(w http.ResponseWriter, status int, code api.Code, message string) {
	writeJSON(w, status, Problem{Code: code, Message: message})
}

// writeError maps err to its stable code and HTTP status. Internal errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := api.CodeOf(err)
	metrics.RecordOperationError(string(code))

	status, ok := statusByCode[code]
	if !ok {
		zap.L().Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeProblem(w, http.StatusInternalServerError, api.CodeInternal, "internal error")
		return
	}
	writeProblem(w, status, code, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is empty")
		}
		return badRequest(fmt.Sprintf("malformed request body: %v", err))
	}
	return nil
}

type requestError struct {
	message string
}

func (e *requestError) Error() string {
	return e.message
}

func badRequest(message string) error {
	return &requestError{message: message}
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest(fmt.Sprintf("%s must be an integer", name))
	}
	return v, nil
}

// fail writes request errors as 400 and everything else through writeError
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		metrics.RecordOperationError(string(api.CodeInvalidArgument))
		writeProblem(w, http.StatusBadRequest, api.CodeInvalidArgument, reqErr.message)
		return
	}
	writeError(w, r, err)
}
