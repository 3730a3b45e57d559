// internal/app/system/reqdecode/reqdecode.go
package reqdecode

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/dalemusser/alumnihub/internal/domain/errs"
	"github.com/dalemusser/alumnihub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// maxBody caps JSON request bodies.
const maxBody = 1 << 20

var (
	queryDecoder = newQueryDecoder()
	validate     = newValidator()
)

func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by the name the client used.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, key := range []string{"json", "schema"} {
			name := strings.SplitN(fld.Tag.Get(key), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return ""
	})
	return v
}

// Query decodes r's URL query into dst (a pointer to a struct tagged with
// `schema:"..."`) and validates it.
func Query(r *http.Request, dst any) error {
	if err := queryDecoder.Decode(dst, r.URL.Query()); err != nil {
		return errs.Invalid("bad query: " + err.Error())
	}
	return Validate(dst)
}

// JSON decodes the request body into dst and validates it. An empty body
// is treated as an empty object.
func JSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errs.Invalid("malformed JSON body")
	}
	return Validate(dst)
}

// Validate runs struct-tag validation and flattens failures into one
// ErrInvalidInput.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return errs.Invalid(err.Error())
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errs.Invalid(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

// PathID parses the named chi URL parameter as an ObjectID.
func PathID(r *http.Request, name string) (primitive.ObjectID, error) {
	return ObjectID(chi.URLParam(r, name), name)
}

// ObjectID parses a hex id; what names the value in the error.
func ObjectID(hex, what string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(hex))
	if err != nil {
		return primitive.NilObjectID, errs.Invalid("bad " + what)
	}
	return id, nil
}

// Target parses a (kind, id) pair naming a user, group or topic. Either
// part being malformed is errs.ErrInvalidTarget.
func Target(kind, hex string) (models.Target, error) {
	t := models.TargetType(strings.ToLower(strings.TrimSpace(kind)))
	if !t.Valid() {
		return models.Target{}, fmt.Errorf("%w: target_type must be user, group or topic", errs.ErrInvalidTarget)
	}
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(hex))
	if err != nil {
		return models.Target{}, fmt.Errorf("%w: bad target_id", errs.ErrInvalidTarget)
	}
	return models.Target{Type: t, ID: id}, nil
}

// Time parses an optional RFC 3339 timestamp; empty yields nil.
func Time(s, what string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, errs.Invalid(what + " must be an RFC 3339 time")
	}
	return &t, nil
}
