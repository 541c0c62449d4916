package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/dukex/flujo/pkg/deadline"
	"github.com/dukex/flujo/pkg/models"
	"github.com/go-playground/validator/v10"
)

// SignatureMimeTypes lists the accepted signature image types.
var SignatureMimeTypes = []string{"image/jpg", "image/jpeg", "image/png"}

// CreateFlujoRequest holds the fields of a new flujo.
type CreateFlujoRequest struct {
	Types          []models.StepType `json:"types"           validate:"required,min=1,max=3,unique,dive,steptype"`
	Title          string            `json:"title"           validate:"required,max=255"`
	Description    string            `json:"description"     validate:"max=4096"`
	CompletionTime string            `json:"completion_time" validate:"required"`
	Passcode       string            `json:"passcode"        validate:"omitempty,max=128"`
}

// UpdateFlujoRequest replaces the title and, when set, the description.
type UpdateFlujoRequest struct {
	Title       string  `json:"title"       validate:"required,max=255"`
	Description *string `json:"description" validate:"omitempty,max=4096"`
}

// ContactInfoRequest holds the contact information submitted by a respondent.
type ContactInfoRequest struct {
	FullName    string `json:"full_name"    validate:"required,max=255"`
	BirthDate   string `json:"birth_date"   validate:"required,isodate"`
	BornPlace   string `json:"born_place"   validate:"required,max=255"`
	PhoneNumber string `json:"phone_number" validate:"required,e164"`
	Email       string `json:"email"        validate:"required,email"`
}

// NewValidator returns a validator that knows the flujo specific tags and
// reports fields by their JSON names.
func NewValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})

	_ = validate.RegisterValidation("steptype", func(fl validator.FieldLevel) bool {
		return models.StepType(fl.Field().String()).Valid()
	})

	_ = validate.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if _, err := time.Parse(time.DateOnly, value); err == nil {
			return true
		}

		_, err := time.Parse(time.RFC3339, value)

		return err == nil
	})

	return validate
}

// validateStruct runs the validator and turns field errors into a ServiceError.
func validateStruct(validate *validator.Validate, op string, req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewValidationError(op, CodeValidationFailed, err.Error())
	}

	return NewValidationError(op, CodeValidationFailed, FormatValidationErrors(fieldErrs))
}

// FormatValidationErrors renders field errors as "field: rule" pairs.
func FormatValidationErrors(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))

	for _, fieldErr := range errs {
		field := fieldErr.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}

		rule := fieldErr.Tag()
		if fieldErr.Param() != "" {
			rule += "=" + fieldErr.Param()
		}

		parts = append(parts, fmt.Sprintf("%s: %s", field, rule))
	}

	return "invalid fields: " + strings.Join(parts, ", ")
}

// ValidateCreate checks a create request, including the completion time expression.
func ValidateCreate(validate *validator.Validate, req CreateFlujoRequest) error {
	if err := validateStruct(validate, "create", req); err != nil {
		return err
	}

	if _, err := deadline.ParseCompletionTime(req.CompletionTime); err != nil {
		return NewValidationError("create", CodeInvalidCompletion, err.Error())
	}

	return nil
}

// ValidateSignature checks an uploaded signature before any flujo is touched.
func ValidateSignature(image []byte, mimeType string) error {
	if len(image) == 0 {
		return NewValidationError("submitSignature", CodeEmptyFile, "signature file is empty")
	}

	for _, allowed := range SignatureMimeTypes {
		if strings.EqualFold(mimeType, allowed) {
			return nil
		}
	}

	return NewValidationError("submitSignature", CodeUnsupportedFileType,
		fmt.Sprintf("unsupported file type %q, only jpg, jpeg and png are allowed", mimeType))
}
