// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"finbot/internal/models"
)

var (
	phoneRegex    = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	categoryRegex = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N} &/_.-]{0,99}$`)
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("transaction_type", validateTransactionType)
		_ = v.RegisterValidation("transaction_source", validateTransactionSource)
		_ = v.RegisterValidation("budget_period", validateBudgetPeriod)
		_ = v.RegisterValidation("chat_channel", validateChatChannel)
		_ = v.RegisterValidation("phone", validatePhone)
		_ = v.RegisterValidation("category_name", validateCategoryName)
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

func validateTransactionType(fl validator.FieldLevel) bool {
	return models.TransactionType(fl.Field().String()).Valid()
}

func validateTransactionSource(fl validator.FieldLevel) bool {
	switch models.TransactionSource(fl.Field().String()) {
	case models.TransactionSourceWeb, models.TransactionSourceChat:
		return true
	}
	return false
}

func validateBudgetPeriod(fl validator.FieldLevel) bool {
	return models.BudgetPeriod(fl.Field().String()).Valid()
}

func validateChatChannel(fl validator.FieldLevel) bool {
	return models.ChatChannel(fl.Field().String()).Valid()
}

func validatePhone(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(fl.Field().String())
}

func validateCategoryName(fl validator.FieldLevel) bool {
	return categoryRegex.MatchString(strings.TrimSpace(fl.Field().String()))
}

// Describe turns a binding error into a field-level message such as
// "amount must be greater than 0; period must be one of daily, weekly,
// monthly, yearly". Non-validation errors (malformed JSON) pass through.
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeField(fe))
	}
	return strings.Join(msgs, "; ")
}

func describeField(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "email":
		return field + " must be a valid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "transaction_type":
		return field + " must be income or expense"
	case "transaction_source":
		return field + " must be web or chat"
	case "budget_period":
		return field + " must be one of daily, weekly, monthly, yearly"
	case "chat_channel":
		return field + " must be telegram or whatsapp"
	case "phone":
		return field + " must be a valid phone number"
	case "category_name":
		return field + " must be a short category label"
	case "gtfield":
		return fmt.Sprintf("%s must be after %s", field, lowerFirst(fe.Param()))
	case "dive":
		return field + " is invalid"
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}

// fieldPath drops the request struct name from the namespace:
// "CreateBudgetRequest.categories[0].amount" -> "categories[0].amount".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
