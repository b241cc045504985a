package models

// GPA breakpoints for a weighted 0-100 total and the fixed letter table.
// A course passes with 2.0 points (C- or better on the letter scale).
const PassingGradePoints = 2.0

type gradeBand struct {
	Min    float64
	Letter string
	Points float64
}

var gradeBands = []gradeBand{
	{90, "A", 4.0},
	{85, "A-", 3.7},
	{80, "B+", 3.3},
	{75, "B", 3.0},
	{70, "B-", 2.7},
	{65, "C+", 2.3},
	{60, "C", 2.0},
}

// letterPoints maps letter grades to GPA points. I and W carry no points.
var letterPoints = map[string]float64{
	"A+": 4.0, "A": 4.0, "A-": 3.7,
	"B+": 3.3, "B": 3.0, "B-": 2.7,
	"C+": 2.3, "C": 2.0, "C-": 1.7,
	"D+": 1.3, "D": 1.0, "D-": 0.7,
	"F": 0.0,
}

// GradeFromTotal maps a weighted 0-100 total to a letter and GPA points.
func GradeFromTotal(total float64) (letter string, points float64) {
	for _, band := range gradeBands {
		if total >= band.Min {
			return band.Letter, band.Points
		}
	}
	return "F", 0.0
}

// PointsForLetter resolves GPA points for a letter grade. The second
// return is false for unknown letters and for I/W, which carry no points.
func PointsForLetter(letter string) (float64, bool) {
	points, ok := letterPoints[letter]
	return points, ok
}

// IsPassingPoints reports whether the given GPA points are a pass.
func IsPassingPoints(points float64) bool {
	return points >= PassingGradePoints
}
