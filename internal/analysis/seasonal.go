package analysis

// Historical heating hours per month, taken from thermostat records of
// the reference installation. The factor for a month is its share of
// the maximum month's heating load.
var monthlyHeatingHours = [13]float64{
	0,  // unused, months are 1-based
	78, // January
	43, // February
	43, // March
	21, // April
	3,  // May
	0,  // June
	0,  // July
	0,  // August
	0,  // September
	5,  // October
	29, // November
	37, // December
}

// SeasonalHeatingFactor relative heating load for a month in [0,1].
func SeasonalHeatingFactor(month int) float64 {
	if month < 1 || month > 12 {
		return 0
	}
	max := 0.0
	for _, h := range monthlyHeatingHours[1:] {
		if h > max {
			max = h
		}
	}
	if max == 0 {
		return 0
	}
	return monthlyHeatingHours[month] / max
}
