package models

// Mode names.
const (
	ModeEasy = "Easy"
	ModeHard = "Hard"
	ModeHero = "Hero"
)

// ModeSettings is a named risk/scaling profile.
type ModeSettings struct {
	Name             string
	ConfidenceFloor  float64
	MaxScaling       float64
	TrailingSLBuffer float64
	RiskTolerance    string
}
