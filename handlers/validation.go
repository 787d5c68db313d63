package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// decodeAndValidate reads the JSON body into dst and runs its validate tags.
// On failure the error response is already written and false is returned.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := readJSON(w, r, dst); err != nil {
		badRequestResponse(w, r, err)
		return false
	}
	return validateInput(w, r, dst)
}

// decodeOptional is decodeAndValidate for endpoints where the body may be
// omitted. Content-Length is not trusted: chunked requests report -1.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := readJSON(w, r, dst); err != nil && !errors.Is(err, errEmptyBody) {
		badRequestResponse(w, r, err)
		return false
	}
	return validateInput(w, r, dst)
}

func validateInput(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			failedValidationResponse(w, r, validationMessages(verrs))
			return false
		}
		badRequestResponse(w, r, err)
		return false
	}
	return true
}

func validationMessages(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if ns := fe.Namespace(); strings.Count(ns, ".") > 1 {
			field = strings.ToLower(ns[strings.Index(ns, ".")+1:])
		}
		switch fe.Tag() {
		case "required":
			out[field] = "must be provided"
		case "max":
			out[field] = fmt.Sprintf("must be at most %s", fe.Param())
		case "min":
			out[field] = fmt.Sprintf("must be at least %s", fe.Param())
		case "len":
			out[field] = fmt.Sprintf("must be exactly %s characters", fe.Param())
		case "oneof":
			out[field] = fmt.Sprintf("must be one of: %s", fe.Param())
		case "gt":
			out[field] = fmt.Sprintf("must be greater than %s", fe.Param())
		case "gte":
			out[field] = fmt.Sprintf("must be at least %s", fe.Param())
		case "url":
			out[field] = "must be a valid URL"
		default:
			out[field] = fmt.Sprintf("failed %q validation", fe.Tag())
		}
	}
	return out
}
