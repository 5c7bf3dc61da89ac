package services

// gradeCutoffs are ordered from highest to lowest; the first cutoff a score
// meets decides the grade.
var gradeCutoffs = []struct {
	min   float64
	grade string
}{
	{95, "A+"},
	{90, "A"},
	{80, "B"},
	{70, "C"},
	{60, "D"},
}

// Grade maps a 0-100 score to a letter grade. It is monotonic in score.
func Grade(score float64) string {
	for _, c := range gradeCutoffs {
		if score >= c.min {
			return c.grade
		}
	}
	return "F"
}
