package dto

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// AttemptStatuses are the status values accepted on write. Pass and Fail imply a completed attempt.
var AttemptStatuses = []string{"in_progress", "completed", "attempted", "abandoned", "Pass", "Fail"}

func validAttemptStatus(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	for _, s := range AttemptStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// RegisterValidators installs the custom binding tags on gin's validator.
func RegisterValidators() error {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		return v.RegisterValidation("attempt_status", validAttemptStatus)
	}
	return nil
}
