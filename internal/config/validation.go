package config

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// ClockLayout is the layout of night mode window bounds.
const ClockLayout = "15:04"

// validateClock accepts 24h "HH:MM" strings.
func validateClock(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if len(value) != len(ClockLayout) {
		return false
	}
	_, err := time.Parse(ClockLayout, value)
	return err == nil
}
