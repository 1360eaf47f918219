package models

import (
	"regexp"
	"strings"
)

// VehicleRegFormat is the canonical registration layout shown to users.
const VehicleRegFormat = "XX-00-XX-0000"

// ErrInvalidVehicleReg is returned when a registration cannot be normalized.
var ErrInvalidVehicleReg = &ValidationError{
	Field:   "vehicle_reg",
	Message: "Vehicle registration must be in the format " + VehicleRegFormat,
}

// two letters, a district pair 00-79, two letters, four digits
var vehicleRegPattern = regexp.MustCompile(`^([A-Z]{2})([0-7][0-9])([A-Z]{2})([0-9]{4})$`)

var vehicleRegStrip = strings.NewReplacer(" ", "", "-", "")

// NormalizeVehicleReg strips spaces and hyphens, uppercases the input and
// rewrites it as XX-00-XX-0000. Anything else yields ErrInvalidVehicleReg.
func NormalizeVehicleReg(raw string) (string, error) {
	compact := strings.ToUpper(vehicleRegStrip.Replace(raw))
	m := vehicleRegPattern.FindStringSubmatch(compact)
	if m == nil {
		return "", ErrInvalidVehicleReg
	}
	return strings.Join(m[1:], "-"), nil
}

// ValidVehicleReg reports whether raw normalizes successfully.
func ValidVehicleReg(raw string) bool {
	_, err := NormalizeVehicleReg(raw)
	return err == nil
}
