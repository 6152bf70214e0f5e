package engine

// gradeRank orders letter grades for capping comparisons, A highest.
var gradeRank = map[string]int{"A": 5, "B": 4, "C": 3, "D": 2, "E": 1}

// GradeFromScore maps a 0-100 score to a letter grade using the fixed,
// non-overlapping platform thresholds.
func GradeFromScore(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 75:
		return "B"
	case score >= 60:
		return "C"
	case score >= 40:
		return "D"
	default:
		return "E"
	}
}

// minGrade returns the lower of two letter grades. Unknown grades are
// treated as E, the conservative floor.
func minGrade(a, b string) string {
	ra, ok := gradeRank[a]
	if !ok {
		return "E"
	}
	rb, ok := gradeRank[b]
	if !ok {
		return "E"
	}
	if ra <= rb {
		return a
	}
	return b
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
