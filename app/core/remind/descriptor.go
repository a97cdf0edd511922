package remind

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Freq identifies the recurrence pattern of a Descriptor.
type Freq string

const (
	FreqDaily      Freq = "daily"
	FreqWeekdaySet Freq = "weekday_set"
	FreqWeeklyOn   Freq = "weekly"
	FreqMonthlyOn  Freq = "monthly"
)

// Descriptor describes a recurrence pattern plus a time of day.
// Weekday indexes are ISO-style: 0=Monday .. 6=Sunday.
type Descriptor struct {
	Freq       Freq  `json:"freq"`
	Hour       int   `json:"hour"`
	Minute     int   `json:"minute"`
	Days       []int `json:"days,omitempty"`
	DayOfMonth int   `json:"day_of_month,omitempty"`
}

func (d Descriptor) Validate() error {
	if d.Hour < 0 || d.Hour > 23 || d.Minute < 0 || d.Minute > 59 {
		return fmt.Errorf("invalid time of day %02d:%02d", d.Hour, d.Minute)
	}
	switch d.Freq {
	case FreqDaily:
		return nil
	case FreqWeekdaySet, FreqWeeklyOn:
		if len(d.Days) == 0 {
			return errors.New("weekday set is empty")
		}
		for _, day := range d.Days {
			if day < 0 || day > 6 {
				return fmt.Errorf("invalid weekday index %d", day)
			}
		}
		return nil
	case FreqMonthlyOn:
		if d.DayOfMonth < 1 || d.DayOfMonth > 31 {
			return fmt.Errorf("invalid day of month %d", d.DayOfMonth)
		}
		return nil
	default:
		return fmt.Errorf("unknown frequency %q", d.Freq)
	}
}

// TimeOfDay renders the HH:MM part for user-facing replies.
func (d Descriptor) TimeOfDay() string {
	return fmt.Sprintf("%02d:%02d", d.Hour, d.Minute)
}

// Describe renders the whole pattern in the bot's language.
func (d Descriptor) Describe() string {
	switch d.Freq {
	case FreqDaily:
		return "codziennie " + d.TimeOfDay()
	case FreqWeeklyOn:
		if len(d.Days) > 0 {
			return "co tydzień " + weekdayNames[d.Days[0]] + " " + d.TimeOfDay()
		}
		return "co tydzień " + d.TimeOfDay()
	case FreqWeekdaySet:
		names := make([]string, 0, len(d.Days))
		for _, day := range d.Days {
			names = append(names, weekdayNames[day])
		}
		return strings.Join(names, ",") + " " + d.TimeOfDay()
	case FreqMonthlyOn:
		return fmt.Sprintf("co miesiąc %d. dnia, %s", d.DayOfMonth, d.TimeOfDay())
	}
	return d.TimeOfDay()
}

// EncodeDays serializes the weekday set for storage.
func (d Descriptor) EncodeDays() string {
	parts := make([]string, 0, len(d.Days))
	for _, day := range d.Days {
		parts = append(parts, strconv.Itoa(day))
	}
	return strings.Join(parts, ",")
}

// DecodeDays parses the storage form produced by EncodeDays.
func DecodeDays(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	days := make([]int, 0, len(parts))
	for _, part := range parts {
		day, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid weekday list %q: %w", raw, err)
		}
		days = append(days, day)
	}
	return days, nil
}

var weekdayNames = [7]string{"pon", "wt", "śr", "czw", "pt", "sob", "nd"}

// weekdayAliases maps every accepted spelling (lowercase) to the ISO index.
// Full names, short forms and non-diacritic spellings are all accepted.
var weekdayAliases = map[string]int{
	"pon": 0, "po": 0, "poniedzialek": 0, "poniedziałek": 0,
	"wt": 1, "wto": 1, "wtorek": 1,
	"sr": 2, "śr": 2, "sro": 2, "śro": 2, "sroda": 2, "środa": 2,
	"cz": 3, "czw": 3, "czwartek": 3,
	"pt": 4, "pia": 4, "pią": 4, "piatek": 4, "piątek": 4,
	"so": 5, "sob": 5, "sobota": 5,
	"nd": 6, "nie": 6, "niedz": 6, "niedziela": 6,
}

// ResolveWeekday maps a day-name token to its ISO index (0=Monday).
func ResolveWeekday(token string) (int, bool) {
	day, ok := weekdayAliases[strings.ToLower(strings.TrimSpace(token))]
	return day, ok
}

// isoWeekday converts time.Weekday (Sunday=0) to the ISO index used here.
func isoWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func sortedUniqueDays(days []int) []int {
	seen := make(map[int]struct{}, len(days))
	out := make([]int, 0, len(days))
	for _, day := range days {
		if _, dup := seen[day]; dup {
			continue
		}
		seen[day] = struct{}{}
		out = append(out, day)
	}
	sort.Ints(out)
	return out
}
