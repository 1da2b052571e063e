package httpapi

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

	"github.com/kinship-labs/parent-match-api/internal/app/apperr"
)

const maxBodyBytes = 1 << 20

// requestValidator reports field errors under their json names.
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{v: v}
}

func (rv *requestValidator) Struct(s any) error {
	err := rv.v.Struct(s)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	details := make(map[string]any, len(ves))
	for _, fe := range ves {
		details[fieldPath(fe)] = fieldMessage(fe)
	}
	return apperr.Validation("invalid request body", details)
}

// fieldPath drops the root struct name, e.g. "CreateProfileRequest.children[0].name" -> "children[0].name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q", fe.Tag())
	}
}

// readBody reads the (size-limited) request body so it can be both hashed and decoded.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, apperr.Validation("request body too large", nil)
		}
		return nil, err
	}
	return raw, nil
}

// decodeInto unmarshals raw into dst and runs struct validation when validate is set.
func (s *Server) decodeInto(raw []byte, dst any, validate bool) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return apperr.Validation("missing request body", nil)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperr.Validation("malformed JSON body", map[string]any{"body": err.Error()})
	}
	if validate {
		return s.validator.Struct(dst)
	}
	return nil
}
