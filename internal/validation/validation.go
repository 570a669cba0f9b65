// Package validation содержит проверки входных данных административных операций.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"github.com/mmeshcher/reward-admin/internal/apperrors"
)

var validate = newValidator()

var allowedImageTypes = []string{"image/png", "image/jpeg", "image/webp", "image/gif"}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	// notblank отклоняет строки, состоящие только из пробелов.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Struct проверяет структуру по тегам validate и возвращает ошибку вида Validation.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.Wrap(apperrors.KindValidation, err, "validation failed")
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fe.Field()+" "+message(fe))
	}
	sort.Strings(msgs)

	return apperrors.New(apperrors.KindValidation, strings.Join(msgs, "; "))
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	}
	return "is invalid"
}

// DetectImage определяет MIME-тип загружаемого изображения.
// Допускаются только png, jpeg, webp и gif.
func DetectImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperrors.Validation("image is empty")
	}

	mt := mimetype.Detect(data)
	for _, allowed := range allowedImageTypes {
		if mt.Is(allowed) {
			return allowed, nil
		}
	}

	return "", apperrors.Validation("unsupported image type %s", mt.String())
}
