package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Error codes used in ErrorResponse.Error.
const (
	CodeValidation  = "ValidationError"
	CodeNotFound    = "NotFound"
	CodeUnavailable = "ServiceUnavailable"
	CodeInternal    = "InternalServerError"
	CodeBadRequest  = "BadRequest"
	CodeTimeout     = "RequestTimeout"
)

// maxBodyBytes bounds request bodies read by DecodeAndValidate.
const maxBodyBytes = 1 << 20

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// encodeFailureBody is written when a response cannot be encoded.
const encodeFailureBody = `{"error":"` + CodeInternal + `","message":"Failed to encode response","detail":null}`

// Success sends a standardized successful HTTP response with optional JSON data.
// A body that cannot be encoded is logged and answered with 500.
func Success(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")

	if data == nil {
		w.WriteHeader(statusCode)
		return
	}

	body, err := json.Marshal(data)
	if err != nil {
		zap.L().Named("api").Error("Failed to encode response",
			zap.Int("status", statusCode),
			zap.String("type", fmt.Sprintf("%T", data)),
			zap.Error(err),
		)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, encodeFailureBody+"\n")
		return
	}

	w.WriteHeader(statusCode)
	if _, err := w.Write(append(body, '\n')); err != nil {
		zap.L().Named("api").Debug("Failed to write response", zap.Error(err))
	}
}

// Error sends a standardized error response with consistent JSON format.
func Error(w http.ResponseWriter, statusCode int, code, message string) {
	ErrorWithDetail(w, statusCode, code, message, "")
}

// ErrorWithDetail sends an error response carrying a detail string.
func ErrorWithDetail(w http.ResponseWriter, statusCode int, code, message, detail string) {
	body := ErrorResponse{Error: code, Message: message}
	if detail != "" {
		body.Detail = &detail
	}
	Success(w, statusCode, body)
}

// ValidationError is returned by DecodeAndValidate when the body is
// well-formed JSON that breaks a field rule.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid fields: " + strings.Join(e.Fields, ", ")
}

// DecodeAndValidate reads a JSON body into dst and runs struct validation.
// A malformed body yields a plain error; failed rules yield *ValidationError.
func DecodeAndValidate(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("malformed JSON body: %w", err)
	}

	if err := getValidator().Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			verr := &ValidationError{}
			for _, fe := range fieldErrs {
				verr.Fields = append(verr.Fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return verr
		}
		return err
	}
	return nil
}
