package core

import (
	"regexp"
	"strconv"
)

const (
	RegistrationCodePrefix = "REG"
	MinRegistrationNumber  = 1000
	MaxRegistrationNumber  = 9999
)

var registrationCodePattern = regexp.MustCompile(`^REG[1-9][0-9]{3}$`)

// IsRegistrationCode reports whether s has the REG#### shape.
func IsRegistrationCode(s string) bool {
	return registrationCodePattern.MatchString(s)
}

// FormatRegistrationCode renders n as a registration code. n must be within
// [MinRegistrationNumber, MaxRegistrationNumber].
func FormatRegistrationCode(n int) string {
	return RegistrationCodePrefix + strconv.Itoa(n)
}
