package remind

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// The parsers below try each pattern in order; the first full match wins.
// A pattern that matches structurally but fails validation (bad clock,
// unknown day name) rejects the whole input so the caller can re-prompt,
// never a partial result. Ordering is significant: a comma list must be
// tried after the range form so "pt-nd" is never split on commas first.

var (
	relativeRe = regexp.MustCompile(`(?i)^za\s+(\d+)\s*(min|m|h|g|dni|d)(?:\s+(.*))?$`)
	absoluteRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?:\s+(.*))?$`)

	dailyRe   = regexp.MustCompile(`(?i)^codziennie\s+(\d{1,2}):(\d{2})(?:\s+(.*))?$`)
	rangeRe   = regexp.MustCompile(`(?i)^([\p{L}]+)-([\p{L}]+)\s+(\d{1,2}):(\d{2})(?:\s+(.*))?$`)
	weeklyRe  = regexp.MustCompile(`(?i)^co\s+tydzie[nń]\s+([\p{L}]+)\s+(\d{1,2}):(\d{2})(?:\s+(.*))?$`)
	listRe    = regexp.MustCompile(`(?i)^([\p{L}]+(?:\s*,\s*[\p{L}]+)+)\s+(\d{1,2}):(\d{2})(?:\s+(.*))?$`)
	monthlyRe = regexp.MustCompile(`(?i)^co\s+miesi[aą]c\s+(\d{1,2})\s+(\d{1,2}):(\d{2})(?:\s+(.*))?$`)
)

// ParseOneShot parses a one-shot reminder prefix and returns the firing
// instant plus the remaining content. When nothing matches it reports
// ok=false and hands the original text back untouched.
func ParseOneShot(text string, now time.Time) (time.Time, string, bool) {
	trimmed := strings.TrimSpace(text)

	if m := relativeRe.FindStringSubmatch(trimmed); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			var delta time.Duration
			switch strings.ToLower(m[2]) {
			case "m", "min":
				delta = time.Duration(n) * time.Minute
			case "h", "g":
				delta = time.Duration(n) * time.Hour
			case "d", "dni":
				delta = time.Duration(n) * 24 * time.Hour
			}
			return now.Add(delta), strings.TrimSpace(m[3]), true
		}
	}

	if m := absoluteRe.FindStringSubmatch(trimmed); m != nil {
		if hour, minute, ok := parseClock(m[1], m[2]); ok {
			at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
			if !at.After(now) {
				at = at.AddDate(0, 0, 1)
			}
			return at, strings.TrimSpace(m[3]), true
		}
	}

	return time.Time{}, text, false
}

// ParseRecurring parses a recurring schedule prefix and returns the
// descriptor plus the remaining content. Patterns are tried in order:
// daily, day range, weekly, day list, monthly.
func ParseRecurring(text string) (Descriptor, string, bool) {
	trimmed := strings.TrimSpace(text)

	if m := dailyRe.FindStringSubmatch(trimmed); m != nil {
		if hour, minute, ok := parseClock(m[1], m[2]); ok {
			return Descriptor{Freq: FreqDaily, Hour: hour, Minute: minute}, strings.TrimSpace(m[3]), true
		}
	}

	if m := rangeRe.FindStringSubmatch(trimmed); m != nil {
		from, okFrom := ResolveWeekday(m[1])
		to, okTo := ResolveWeekday(m[2])
		if okFrom && okTo {
			if hour, minute, ok := parseClock(m[3], m[4]); ok {
				return Descriptor{
					Freq:   FreqWeekdaySet,
					Hour:   hour,
					Minute: minute,
					Days:   expandDayRange(from, to),
				}, strings.TrimSpace(m[5]), true
			}
		}
	}

	if m := weeklyRe.FindStringSubmatch(trimmed); m != nil {
		if day, okDay := ResolveWeekday(m[1]); okDay {
			if hour, minute, ok := parseClock(m[2], m[3]); ok {
				return Descriptor{
					Freq:   FreqWeeklyOn,
					Hour:   hour,
					Minute: minute,
					Days:   []int{day},
				}, strings.TrimSpace(m[4]), true
			}
		}
	}

	if m := listRe.FindStringSubmatch(trimmed); m != nil {
		if days, okDays := resolveDayList(m[1]); okDays {
			if hour, minute, ok := parseClock(m[2], m[3]); ok {
				return Descriptor{
					Freq:   FreqWeekdaySet,
					Hour:   hour,
					Minute: minute,
					Days:   days,
				}, strings.TrimSpace(m[4]), true
			}
		}
	}

	if m := monthlyRe.FindStringSubmatch(trimmed); m != nil {
		dom, err := strconv.Atoi(m[1])
		if err == nil && dom >= 1 && dom <= 31 {
			if hour, minute, ok := parseClock(m[2], m[3]); ok {
				return Descriptor{
					Freq:       FreqMonthlyOn,
					Hour:       hour,
					Minute:     minute,
					DayOfMonth: dom,
				}, strings.TrimSpace(m[4]), true
			}
		}
	}

	return Descriptor{}, text, false
}

func parseClock(hourText, minuteText string) (int, int, bool) {
	hour, err := strconv.Atoi(hourText)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute, err := strconv.Atoi(minuteText)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// expandDayRange expands an inclusive weekday range, wrapping across the
// week boundary, so pt-pon covers Friday through Monday.
func expandDayRange(from, to int) []int {
	days := make([]int, 0, 7)
	for day := from; ; day = (day + 1) % 7 {
		days = append(days, day)
		if day == to {
			break
		}
	}
	return sortedUniqueDays(days)
}

// resolveDayList resolves a comma-separated day list. At least two tokens
// are required, and every token must name a weekday.
func resolveDayList(raw string) ([]int, bool) {
	tokens := strings.Split(raw, ",")
	if len(tokens) < 2 {
		return nil, false
	}
	days := make([]int, 0, len(tokens))
	for _, token := range tokens {
		day, ok := ResolveWeekday(token)
		if !ok {
			return nil, false
		}
		days = append(days, day)
	}
	return sortedUniqueDays(days), true
}
