package engine

// Unit-to-hour conversion follows the institutional crediting rule: one
// lecture unit equals one weekly contact hour, while lab units convert at
// 0.75 units per hour. The ratios are fixed, not configuration.
const labUnitsPerHour = 0.75

// LectureHours converts lecture units to weekly teaching hours.
func LectureHours(units float64) float64 {
	if units <= 0 {
		return 0
	}
	return units
}

// LabHours converts laboratory units to weekly teaching hours.
// 2.25 units yield exactly 3.0 hours; 1.5 units yield exactly 2.0.
func LabHours(units float64) float64 {
	if units <= 0 {
		return 0
	}
	return units / labUnitsPerHour
}

// TotalTeachingHours returns the combined weekly hours for a subject.
func TotalTeachingHours(lectureUnits, labUnits float64) float64 {
	return LectureHours(lectureUnits) + LabHours(labUnits)
}

// LabUnitsFromHours inverts LabHours for display and edit round-trips.
func LabUnitsFromHours(hours float64) float64 {
	if hours <= 0 {
		return 0
	}
	return hours * labUnitsPerHour
}
