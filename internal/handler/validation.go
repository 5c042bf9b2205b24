package handler

import (
	"fmt"
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var durationPattern = regexp.MustCompile(`^\d{2}:[0-5]\d:[0-5]\d$`)

// duration validates durations formatted as HH:mm:ss like maintenance window durations and polling
// times.
func duration(fl validator.FieldLevel) bool {
	return durationPattern.MatchString(fl.Field().String())
}

var controllerIDPattern = regexp.MustCompile(`^[\w.\-:@]+$`)

// controllerID validates controller ids. They are part of URLs and DMF thing ids so whitespace and
// slashes are not allowed.
func controllerID(fl validator.FieldLevel) bool {
	return controllerIDPattern.MatchString(fl.Field().String())
}

var timeZonePattern = regexp.MustCompile(`^[+-]\d{2}:[0-5]\d$`)

// timeZone validates offsets from UTC like +02:00.
func timeZone(fl validator.FieldLevel) bool {
	return timeZonePattern.MatchString(fl.Field().String())
}

// RegisterValidation Inspiration: https://blog.logrocket.com/gin-binding-in-go-a-tutorial-with-examples/
func RegisterValidation() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("error getting validation engine")
	}

	validations := map[string]validator.Func{
		"duration":     duration,
		"controllerId": controllerID,
		"timezone":     timeZone,
	}
	for tag, fn := range validations {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register validation %q: %v", tag, err)
		}
	}
	return nil
}
