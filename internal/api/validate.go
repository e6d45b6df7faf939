package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/ashureev/persona-lab/internal/domain"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 10 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type createPersonaRequest struct {
	Name            string   `json:"name" validate:"required,max=100"`
	Description     string   `json:"description" validate:"required,max=4000"`
	Characteristics []string `json:"characteristics" validate:"omitempty,dive,required,max=100"`
}

func (r *createPersonaRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	for i := range r.Characteristics {
		r.Characteristics[i] = strings.TrimSpace(r.Characteristics[i])
	}
}

type updatePersonaRequest struct {
	Name            *string   `json:"name" validate:"omitnil,min=1,max=100"`
	Description     *string   `json:"description" validate:"omitnil,min=1,max=4000"`
	Characteristics *[]string `json:"characteristics" validate:"omitnil,dive,required,max=100"`
}

func (r *updatePersonaRequest) normalize() {
	trimPtr(r.Name)
	trimPtr(r.Description)
	if r.Characteristics != nil {
		for i := range *r.Characteristics {
			(*r.Characteristics)[i] = strings.TrimSpace((*r.Characteristics)[i])
		}
	}
}

func (r *updatePersonaRequest) update() domain.PersonaUpdate {
	return domain.PersonaUpdate{Name: r.Name, Description: r.Description, Characteristics: r.Characteristics}
}

type historyMessage struct {
	Role      string          `json:"role" validate:"required,oneof=user assistant"`
	Content   string          `json:"content" validate:"required"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type interviewMessageRequest struct {
	PersonaID string           `json:"personaId" validate:"required"`
	Message   string           `json:"message" validate:"required,max=1000"`
	History   []historyMessage `json:"history" validate:"omitempty,dive"`
}

func (r *interviewMessageRequest) normalize() {
	r.PersonaID = strings.TrimSpace(r.PersonaID)
	r.Message = strings.TrimSpace(r.Message)
}

func (r *interviewMessageRequest) history() []domain.Message {
	out := make([]domain.Message, 0, len(r.History))
	for _, m := range r.History {
		out = append(out, domain.Message{Role: m.Role, Content: m.Content, Timestamp: parseTimestamp(m.Timestamp)})
	}
	return out
}

type updateProfileRequest struct {
	DisplayName *string `json:"displayName" validate:"omitnil,min=1,max=100"`
	Bio         *string `json:"bio" validate:"omitnil,max=500"`
	Location    *string `json:"location" validate:"omitnil,max=100"`
	Website     *string `json:"website" validate:"omitnil,uri"`
}

func (r *updateProfileRequest) normalize() {
	trimPtr(r.DisplayName)
	trimPtr(r.Bio)
	trimPtr(r.Location)
}

// fields returns the allow-listed profile fields present in the request.
func (r *updateProfileRequest) fields() domain.Profile {
	out := domain.Profile{}
	set := func(key string, v *string) {
		if v != nil {
			out[key] = *v
		}
	}
	set("displayName", r.DisplayName)
	set("bio", r.Bio)
	set("location", r.Location)
	set("website", r.Website)
	return out
}

type normalizer interface {
	normalize()
}

// decodeAndValidate reads a JSON body into dst, trims it and validates it.
// Unknown fields are ignored. An empty body decodes as an empty object.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst normalizer) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &AppError{Status: http.StatusRequestEntityTooLarge, Message: "Request body too large", Code: CodeValidation, Err: err}
		}
		return &AppError{Status: http.StatusBadRequest, Message: "Validation failed", Code: CodeValidation, Details: "Invalid JSON body: " + err.Error(), Err: err}
	}

	dst.normalize()
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, fieldMessage(fe))
	}
	return &AppError{
		Status:  http.StatusBadRequest,
		Message: "Validation failed",
		Code:    CodeValidation,
		Details: strings.Join(messages, ", "),
		Err:     err,
	}
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	isList := fe.Kind() == reflect.Slice || fe.Kind() == reflect.Array
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%q is required", field)
	case "min":
		if isList {
			return fmt.Sprintf("%q must contain at least %s items", field, fe.Param())
		}
		return fmt.Sprintf("%q length must be at least %s characters long", field, fe.Param())
	case "max":
		if isList {
			return fmt.Sprintf("%q must contain less than or equal to %s items", field, fe.Param())
		}
		return fmt.Sprintf("%q length must be less than or equal to %s characters long", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%q must be one of [%s]", field, strings.Join(strings.Fields(fe.Param()), ", "))
	case "uri", "url":
		return fmt.Sprintf("%q must be a valid uri", field)
	default:
		return fmt.Sprintf("%q is invalid", field)
	}
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

// parseTimestamp accepts RFC 3339 strings, unix milliseconds and
// {seconds|_seconds} objects. Anything else yields the zero time.
func parseTimestamp(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UTC()
		}
		return time.Time{}
	}

	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(ms).UTC()
	}

	var obj struct {
		Seconds     *int64 `json:"seconds"`
		LegacySecs  *int64 `json:"_seconds"`
		Nanoseconds int64  `json:"nanoseconds"`
		LegacyNanos int64  `json:"_nanoseconds"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		switch {
		case obj.Seconds != nil:
			return time.Unix(*obj.Seconds, obj.Nanoseconds).UTC()
		case obj.LegacySecs != nil:
			return time.Unix(*obj.LegacySecs, obj.LegacyNanos).UTC()
		}
	}
	return time.Time{}
}
