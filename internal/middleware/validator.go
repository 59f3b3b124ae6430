package middleware

import (
    "errors"
    "fmt"
    "reflect"
    "strings"

    "github.com/go-playground/validator/v10"
)

// RequestValidator plugs go-playground/validator into echo.Context.Validate.
type RequestValidator struct {
    v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
    v := validator.New(validator.WithRequiredStructEnabled())
    v.RegisterTagNameFunc(jsonFieldName)
    return &RequestValidator{v: v}
}

// Validate returns a client-safe description of the first failing fields.
func (rv *RequestValidator) Validate(i any) error {
    err := rv.v.Struct(i)
    if err == nil {
        return nil
    }
    var verrs validator.ValidationErrors
    if !errors.As(err, &verrs) {
        return err
    }
    msgs := make([]string, 0, len(verrs))
    for _, fe := range verrs {
        msgs = append(msgs, describe(fe))
    }
    return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
    switch fe.Tag() {
    case "required":
        return fmt.Sprintf("%s is required", fe.Field())
    case "email":
        return fmt.Sprintf("%s must be a valid email", fe.Field())
    case "min", "gte":
        return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
    case "max", "lte":
        return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
    case "gt":
        return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
    case "oneof":
        return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
    case "datetime":
        return fmt.Sprintf("%s must be a date in %s format", fe.Field(), fe.Param())
    case "url":
        return fmt.Sprintf("%s must be a URL", fe.Field())
    }
    return fmt.Sprintf("%s is invalid", fe.Field())
}

// jsonFieldName reports fields by their JSON name.
func jsonFieldName(f reflect.StructField) string {
    name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
    switch name {
    case "-":
        return ""
    case "":
        return f.Name
    }
    return name
}
