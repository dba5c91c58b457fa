package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"

	"github.com/goccy/go-json"

	"github.com/BrandonDHaskell/readings/internal/readings/types"
	"github.com/BrandonDHaskell/readings/internal/validation"
)

var errMalformedBody = errors.New("malformed request body")

type errorBody struct {
	Error   string                  `json:"error"`
	Details []validation.FieldError `json:"details,omitempty"`
}

// decodeBatch reads at most maxBodyBytes and decodes the batch. Oversized
// bodies surface as *http.MaxBytesError, type mismatches as
// *validation.SchemaError and anything unparseable as errMalformedBody.
func (s *Server) decodeBatch(w http.ResponseWriter, r *http.Request, dst *types.BatchPayload) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		return err
	}

	if isProtobuf(r) {
		body, err = protoStructToJSON(body)
		if err != nil {
			return fmt.Errorf("%w: %v", errMalformedBody, err)
		}
	}

	if !json.Valid(body) {
		return errMalformedBody
	}

	// Well-formed JSON that does not decode has a value of the wrong type.
	if err := json.Unmarshal(body, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return validation.TypeMismatch(typeErr.Field, jsonKind(typeErr.Type), typeErr.Value)
		}
		return &validation.SchemaError{Fields: []validation.FieldError{{Message: "Invalid input"}}}
	}
	return nil
}

func jsonKind(t reflect.Type) string {
	if t == nil {
		return "value"
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Float32, reflect.Float64,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Struct, reflect.Map:
		return "object"
	case reflect.Bool:
		return "boolean"
	default:
		return t.Kind().String()
	}
}

// writeResponse answers in the request's encoding: protobuf Struct for
// protobuf callers, JSON otherwise.
func writeResponse(w http.ResponseWriter, r *http.Request, status int, v any) {
	if isProtobuf(r) {
		writeProto(w, status, v)
		return
	}
	writeJSON(w, status, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"Unexpected error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string, details []validation.FieldError) {
	writeResponse(w, r, status, errorBody{Error: msg, Details: details})
}
