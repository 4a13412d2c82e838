package profile

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Params holds the rider/bike physical parameters the power models depend on.
// Pointer fields distinguish "not provided" from a zero value; the models
// apply documented defaults for missing fields.
type Params struct {
	RiderWeightKg *float64 `json:"rider_weight_kg,omitempty"`
	BikeWeightKg  *float64 `json:"bike_weight_kg,omitempty"`
	BikeType      string   `json:"bike_type,omitempty"`
	TireWidthMm   *float64 `json:"tire_width_mm,omitempty"`
	TireQuality   string   `json:"tire_quality,omitempty"`
	CdA           *float64 `json:"cda,omitempty"`
	Crr           *float64 `json:"crr,omitempty"`

	// CrankEfficiencyPct is the drivetrain efficiency in percent. Zero means
	// "use the seasonal default".
	CrankEfficiencyPct float64 `json:"crank_efficiency,omitempty"`

	Device string `json:"device,omitempty"`

	// ProfileVersion identifies the parameter set; persisted results carrying
	// a different version are stale.
	ProfileVersion string `json:"profile_version,omitempty"`
}

// versionSubset is the canonical slice of the profile that participates in
// version hashing. Cosmetic fields (bike name, consent flags) must not bump
// the version.
type versionSubset struct {
	RiderWeightKg *float64 `json:"rider_weight_kg"`
	BikeType      string   `json:"bike_type"`
	BikeWeightKg  *float64 `json:"bike_weight_kg"`
	TireWidthMm   *float64 `json:"tire_width_mm"`
	TireQuality   string   `json:"tire_quality"`
	Device        string   `json:"device"`
}

// ComputeVersion derives the profile version string from the physically
// relevant parameter subset: "v1-<sha1[:8]>-<yyyymmdd>". Two profiles with
// identical physical parameters on the same day get identical versions.
func ComputeVersion(p Params, now time.Time) string {
	sub := versionSubset{
		RiderWeightKg: p.RiderWeightKg,
		BikeType:      p.BikeType,
		BikeWeightKg:  p.BikeWeightKg,
		TireWidthMm:   p.TireWidthMm,
		TireQuality:   p.TireQuality,
		Device:        p.Device,
	}
	// encoding/json emits struct fields in declaration order, so the canonical
	// form is stable without sorting.
	raw, err := json.Marshal(sub)
	if err != nil {
		raw = []byte("{}")
	}
	sum := sha1.Sum(raw)
	return "v1-" + hex.EncodeToString(sum[:])[:8] + "-" + now.UTC().Format("20060102")
}

// DefaultBikeWeightKg returns the default bike weight for a bike type.
func DefaultBikeWeightKg(bikeType string) float64 {
	switch bikeType {
	case "road":
		return 8.0
	case "gravel":
		return 9.5
	default:
		return 11.5
	}
}

// SeasonalCrankEfficiencyPct returns the drivetrain efficiency default for
// the given month. Winter rides run slightly dirtier drivetrains.
func SeasonalCrankEfficiencyPct(now time.Time) float64 {
	switch now.UTC().Month() {
	case time.November, time.December, time.January, time.February, time.March:
		return 96.0
	default:
		return 97.0
	}
}

// Normalize fills derived fields: bike weight by type, seasonal crank
// efficiency, and the profile version when absent.
func Normalize(p Params, now time.Time) Params {
	if p.BikeWeightKg == nil || *p.BikeWeightKg <= 0 {
		w := DefaultBikeWeightKg(p.BikeType)
		p.BikeWeightKg = &w
	}
	if p.CrankEfficiencyPct <= 0 {
		p.CrankEfficiencyPct = SeasonalCrankEfficiencyPct(now)
	}
	if p.ProfileVersion == "" {
		p.ProfileVersion = ComputeVersion(p, now)
	}
	return p
}

// CompletenessPct reports how many of the six physical fields are known, as a
// rounded percentage. More known fields means a tighter estimated error range.
func CompletenessPct(p Params) int {
	known := 0
	if p.RiderWeightKg != nil {
		known++
	}
	if p.BikeWeightKg != nil {
		known++
	}
	if p.TireWidthMm != nil {
		known++
	}
	if p.TireQuality != "" {
		known++
	}
	if p.BikeType != "" {
		known++
	}
	if p.CdA != nil {
		known++
	}
	return int(float64(known)/6.0*100.0 + 0.5)
}
