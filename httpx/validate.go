package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

var ErrBadBody = errors.New("malformed request body")

var validate = validator.New()

// DecodeValid reads a JSON body into v and checks its validate tags. A body
// that does not parse yields ErrBadBody; failed tags come back as
// validator.ValidationErrors.
func DecodeValid(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadBody, err)
	}
	return validate.Struct(v)
}
