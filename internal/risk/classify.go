package risk

// Risk bands returned by BandScore.
const (
	BandHigh   = "High"
	BandMedium = "Medium"
	BandLow    = "Low"
)

// Grades returned by GradeScore.
const (
	GradeVeryHigh = "Very High"
	GradeHigh     = "High"
	GradeModerate = "Moderate"
	GradeLow      = "Low"
	GradeMinimal  = "Minimal"
)

// BandScore is the three-level classifier stored with assessments.
// Boundaries are exclusive: 75 is Medium.
func BandScore(score float64) string {
	switch {
	case score > 75:
		return BandHigh
	case score > 50:
		return BandMedium
	default:
		return BandLow
	}
}

// GradeScore is the five-level display scale. Boundaries are inclusive:
// 70 is Very High.
func GradeScore(score float64) string {
	switch {
	case score >= 70:
		return GradeVeryHigh
	case score >= 50:
		return GradeHigh
	case score >= 30:
		return GradeModerate
	case score >= 15:
		return GradeLow
	default:
		return GradeMinimal
	}
}
