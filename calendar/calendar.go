// Package calendar answers date-classification questions for the Turkish
// grid territory: national holidays and the two religious observance
// periods that shift consumption patterns. All lookups are pure functions
// of the calendar date.
package calendar

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/rickar/cal/v2"
	"gopkg.in/yaml.v3"
)

//go:embed periods.yaml
var periodsYAML []byte

// Fixed-date Turkish national holidays. The moveable religious feast days
// are covered by the kurban/ramadan period tables instead.
var Holidays = []*cal.Holiday{
	{Name: "New Year's Day", Month: time.January, Day: 1, Func: cal.CalcDayOfMonth},
	{Name: "National Sovereignty and Children's Day", Month: time.April, Day: 23, Func: cal.CalcDayOfMonth},
	{Name: "Labour and Solidarity Day", Month: time.May, Day: 1, Func: cal.CalcDayOfMonth},
	{Name: "Commemoration of Ataturk, Youth and Sports Day", Month: time.May, Day: 19, Func: cal.CalcDayOfMonth},
	{Name: "Democracy and National Unity Day", Month: time.July, Day: 15, Func: cal.CalcDayOfMonth},
	{Name: "Victory Day", Month: time.August, Day: 30, Func: cal.CalcDayOfMonth},
	{Name: "Republic Day", Month: time.October, Day: 29, Func: cal.CalcDayOfMonth},
}

type period struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type periodTables struct {
	Ramadan []period `yaml:"ramadan"`
	Kurban  []period `yaml:"kurban"`
}

// Calendar resolves holiday and religious-period membership for timestamps.
// Holiday dates are expanded per year on first use and cached. Not safe for
// concurrent use.
type Calendar struct {
	loc *time.Location

	ramadan map[string]struct{}
	kurban  map[string]struct{}

	holidayYears map[int]map[string]struct{}
}

// New builds a Calendar for the given location, expanding the embedded
// religious-period tables into per-date sets.
func New(loc *time.Location) (*Calendar, error) {
	var tables periodTables
	if err := yaml.Unmarshal(periodsYAML, &tables); err != nil {
		return nil, fmt.Errorf("unable to parse embedded period tables, %w", err)
	}

	c := &Calendar{
		loc:          loc,
		ramadan:      make(map[string]struct{}),
		kurban:       make(map[string]struct{}),
		holidayYears: make(map[int]map[string]struct{}),
	}
	if err := expandPeriods(tables.Ramadan, loc, c.ramadan); err != nil {
		return nil, err
	}
	if err := expandPeriods(tables.Kurban, loc, c.kurban); err != nil {
		return nil, err
	}
	return c, nil
}

func expandPeriods(periods []period, loc *time.Location, dst map[string]struct{}) error {
	for _, p := range periods {
		start, err := time.ParseInLocation("2006-01-02", p.Start, loc)
		if err != nil {
			return fmt.Errorf("invalid period start %q, %w", p.Start, err)
		}
		end, err := time.ParseInLocation("2006-01-02", p.End, loc)
		if err != nil {
			return fmt.Errorf("invalid period end %q, %w", p.End, err)
		}
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			dst[dateKey(d)] = struct{}{}
		}
	}
	return nil
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// IsHoliday reports whether the calendar date of t is a national holiday.
func (c *Calendar) IsHoliday(t time.Time) bool {
	t = t.In(c.loc)
	year := t.Year()
	days, ok := c.holidayYears[year]
	if !ok {
		days = make(map[string]struct{}, len(Holidays))
		for _, hol := range Holidays {
			actual, _ := hol.Calc(year)
			days[dateKey(actual)] = struct{}{}
		}
		c.holidayYears[year] = days
	}
	_, ok = days[dateKey(t)]
	return ok
}

// IsRamadan reports whether the calendar date of t falls inside a listed
// Ramadan period.
func (c *Calendar) IsRamadan(t time.Time) bool {
	_, ok := c.ramadan[dateKey(t.In(c.loc))]
	return ok
}

// IsKurban reports whether the calendar date of t falls inside a listed
// Kurban period.
func (c *Calendar) IsKurban(t time.Time) bool {
	_, ok := c.kurban[dateKey(t.In(c.loc))]
	return ok
}
