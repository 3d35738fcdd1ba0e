package utils

import (
	"strings"

	"parkingsystem/internal/db"
)

var vehicleClassAliases = map[string]db.VehicleClass{
	"2-wheeler":   db.TwoWheeler,
	"2wheeler":    db.TwoWheeler,
	"two_wheeler": db.TwoWheeler,
	"two-wheeler": db.TwoWheeler,
	"2w":          db.TwoWheeler,
	"bike":        db.TwoWheeler,
	"motorcycle":  db.TwoWheeler,
	"scooter":     db.TwoWheeler,

	"4-wheeler":    db.FourWheeler,
	"4wheeler":     db.FourWheeler,
	"four_wheeler": db.FourWheeler,
	"four-wheeler": db.FourWheeler,
	"4w":           db.FourWheeler,
	"car":          db.FourWheeler,
	"suv":          db.FourWheeler,

	"commercial": db.Commercial,
	"truck":      db.Commercial,
	"bus":        db.Commercial,
	"van":        db.Commercial,
}

// ParseVehicleClass maps the loose names used by clients and operators onto a
// VehicleClass. Car and SUV share the 4-wheeler pool.
func ParseVehicleClass(name string) (db.VehicleClass, bool) {
	class, ok := vehicleClassAliases[strings.ToLower(strings.TrimSpace(name))]
	return class, ok
}

// NormalizePlate upper-cases a registration plate and drops spaces and dashes.
func NormalizePlate(plate string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(plate) {
		if r == ' ' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
