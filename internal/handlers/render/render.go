package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/nkiryanov/videotube/internal/apperrors"
)

const (
	internalErrorMessage   = "Internal server error"
	validationErrorMessage = "Request validation failed"
	invalidJSONMessage     = "Invalid JSON body"
)

var validate = validator.New()

func init() {
	// Return on 'TagName' json tag instead of struct name
	// Look at documentation of 'RegisterTagNameFunc' for more details
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		// skip if tag key says it should be ignored
		if name == "-" {
			return ""
		}
		return name
	})

	// Whitespace only strings are as bad as missing ones
	_ = validate.RegisterValidation("notblank", validators.NotBlank)
}

type Struct any

type logger interface {
	Error(msg string, args ...any)
}

// Success envelope
type Response struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
	Success    bool   `json:"success"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Failure envelope. Data is always null
type ErrorResponse struct {
	StatusCode int          `json:"statusCode"`
	Message    string       `json:"message"`
	Data       any          `json:"data"`
	Success    bool         `json:"success"`
	Errors     []FieldError `json:"errors"`
}

func JSON(w http.ResponseWriter, code int, message string, data any) {
	jsonWithStatus(w, Response{
		StatusCode: code,
		Message:    message,
		Data:       data,
		Success:    true,
	}, code)
}

// Render ServiceError
func ServiceError(w http.ResponseWriter, message string, code int) {
	errorWithDetails(w, message, code, nil)
}

// Render any error
// Expected errors (apperrors.Error) are rendered with their own status and message
// Others are logged and hidden behind 500
func Error(w http.ResponseWriter, err error, l logger) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Kind != apperrors.KindInternal {
		ServiceError(w, appErr.Message, appErr.Kind.StatusCode())
		return
	}

	l.Error("Request failed", "error", err)

	message := internalErrorMessage
	if appErr != nil {
		message = appErr.Message
	}
	ServiceError(w, message, http.StatusInternalServerError)
}

// Render json DecodeError
// Decoder text never reaches the client, only the field name does
func DecodeError(w http.ResponseWriter, err error) {
	message := invalidJSONMessage

	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr) && typeErr.Field != "":
		message = fmt.Sprintf("Invalid data type for field '%s'", typeErr.Field)
	case errors.Is(err, io.EOF):
		message = "Request body is empty"
	}

	ServiceError(w, message, http.StatusBadRequest)
}

// Render ValidationErrors
func ValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	details := make([]FieldError, 0, len(errs))

	// Create user-friendly error messages based on validation tag
	for _, fieldError := range errs {
		var message string
		switch fieldError.Tag() {
		case "required", "notblank":
			message = "This field is required"
		case "min":
			message = fmt.Sprintf("Value is too short (minimum %s)", fieldError.Param())
		case "max":
			message = fmt.Sprintf("Value is too long (maximum %s)", fieldError.Param())
		case "email":
			message = "Invalid email"
		default:
			message = "Invalid value"
		}

		details = append(details, FieldError{Field: fieldError.Field(), Message: message})
	}

	errorWithDetails(w, validationErrorMessage, http.StatusBadRequest, details)
}

// BindAndValidate decodes JSON request body into type T and validates it using struct tags.
// Returns the decoded value and writes appropriate error responses for decoding or validation failures.
func BindAndValidate[T Struct](w http.ResponseWriter, r *http.Request) (T, error) {
	var value T

	err := json.NewDecoder(r.Body).Decode(&value)
	if err != nil {
		DecodeError(w, err)
		return value, err
	}

	err = validate.Struct(value)
	if err != nil {
		// pretty sure cast will be ok cause expecting T is valid struct
		errs := err.(validator.ValidationErrors)
		ValidationErrors(w, errs)
		return value, err
	}

	return value, nil
}

func errorWithDetails(w http.ResponseWriter, message string, code int, details []FieldError) {
	if details == nil {
		details = []FieldError{}
	}

	jsonWithStatus(w, ErrorResponse{
		StatusCode: code,
		Message:    message,
		Data:       nil,
		Success:    false,
		Errors:     details,
	}, code)
}

// renderJSONWithStatus sends data as json and enforces status code
func jsonWithStatus(w http.ResponseWriter, data any, code int) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)

	if err := enc.Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(buf.Bytes())
}
