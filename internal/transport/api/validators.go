package api

import (
	"fmt"
	"strconv"
	"unicode"

	"github.com/gin-gonic/gin/binding"

	"github.com/go-playground/validator/v10"
)

const (
	minAccountNumberLength = 5
	maxAccountNumberLength = 34
)

// validateMaxBytes в отличии от тэга max который проверяет длину рун, - проверят длину байт в поле.
func validateMaxBytes(fl validator.FieldLevel) bool {
	param := fl.Param() // получаем значение из тега
	maxBytes, err := strconv.Atoi(param)
	if err != nil {
		return false
	}

	// нужно убедится что значение поля - строка.
	str, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}

	return len([]byte(str)) <= maxBytes
}

// validateAccountNumber номер счета для вывода: только цифры, от 5 до 34 символов.
func validateAccountNumber(fl validator.FieldLevel) bool {
	str, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	if len(str) < minAccountNumberLength || len(str) > maxAccountNumberLength {
		return false
	}
	for _, r := range str {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func registerValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("validator registration: unexpected engine %T", binding.Validator.Engine())
	}
	if err := v.RegisterValidation("max_bytes", validateMaxBytes); err != nil {
		return fmt.Errorf("validator registration: %s", err.Error())
	}
	if err := v.RegisterValidation("account_number", validateAccountNumber); err != nil {
		return fmt.Errorf("validator registration: %s", err.Error())
	}
	return nil
}
