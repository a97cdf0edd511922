package remind

import "time"

// NextRun computes the next firing instant for a descriptor, strictly
// after now. It is a pure function of its inputs: the same descriptor and
// the same now always yield the same result, in now's location.
func NextRun(d Descriptor, now time.Time) time.Time {
	switch d.Freq {
	case FreqDaily:
		at := atTimeOfDay(now, d.Hour, d.Minute)
		if !at.After(now) {
			at = at.AddDate(0, 0, 1)
		}
		return at

	case FreqWeekdaySet, FreqWeeklyOn:
		allowed := make(map[int]struct{}, len(d.Days))
		for _, day := range d.Days {
			allowed[day] = struct{}{}
		}
		for offset := 0; offset <= 7; offset++ {
			day := now.AddDate(0, 0, offset)
			if _, ok := allowed[isoWeekday(day)]; !ok {
				continue
			}
			at := atTimeOfDay(day, d.Hour, d.Minute)
			if at.After(now) {
				return at
			}
		}
		// Unreachable with a non-empty set, kept as a guard.
		return atTimeOfDay(now.AddDate(0, 0, 7), d.Hour, d.Minute)

	case FreqMonthlyOn:
		at := monthlyCandidate(now.Year(), now.Month(), d, now.Location())
		if at.After(now) {
			return at
		}
		next := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, 1, 0)
		return monthlyCandidate(next.Year(), next.Month(), d, now.Location())
	}

	// Unknown frequency, treated as daily so the caller never stalls.
	at := atTimeOfDay(now, d.Hour, d.Minute)
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

// monthlyCandidate places the descriptor's day in the given month,
// clamped to the month's last day when the day does not exist there
// (day 31 in February lands on the 28th or 29th).
func monthlyCandidate(year int, month time.Month, d Descriptor, loc *time.Location) time.Time {
	day := d.DayOfMonth
	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, d.Hour, d.Minute, 0, 0, loc)
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1).Day()
}

func atTimeOfDay(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}
