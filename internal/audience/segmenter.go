// Package audience computes which subscribers receive mail on a given day
// and partitions them into segments that each share one generated message.
//
// Three independent cadences feed the general pool (monthly on the first
// of the month, weekly on Mondays, holiday-triggered on event days), and a
// birthday today overrides all of them: a subscriber receives at most one
// email per day, and a birthday greeting beats a routine one.
package audience

import (
	"sort"
	"strconv"
	"time"

	"foreversister/internal/types"
)

// Segment partitions the subscribers eligible on date into audience
// segments. The returned order is stable: general segments first, in
// salutation order, then birthday cohorts in salutation order with
// cohort years ascending and the unknown cohort last.
//
// The union of all returned segments contains no duplicate email: every
// eligible subscriber lands in exactly one segment, and a subscriber
// eligible for none receives nothing.
func Segment(subscribers []types.Subscriber, date time.Time, event *types.Event) []types.Segment {
	isMonthStart := date.Day() == 1
	isMonday := date.Weekday() == time.Monday
	hasEvent := event != nil

	// Birthday precedence: anyone with a birthday today leaves the
	// general pool regardless of cadence.
	birthdayToday := make(map[string]types.Subscriber)
	for _, s := range subscribers {
		if s.BirthdayOn(date.Month(), date.Day()) {
			birthdayToday[s.Email] = s
		}
	}

	// Candidate pool per salutation. A subscriber can qualify through
	// several cadences on the same day but is only added once.
	general := make(map[types.Salutation][]string)
	seen := make(map[string]bool)
	for _, s := range subscribers {
		if _, isBirthday := birthdayToday[s.Email]; isBirthday {
			continue
		}
		if seen[s.Email] {
			continue
		}
		if !eligibleToday(s.Cadence, isMonthStart, isMonday, hasEvent) {
			continue
		}
		seen[s.Email] = true
		general[s.Salutation] = append(general[s.Salutation], s.Email)
	}

	theme := themeFor(hasEvent, isMonthStart, isMonday)

	var segments []types.Segment
	for _, sal := range types.Salutations {
		recipients := general[sal]
		if len(recipients) == 0 {
			continue
		}
		segments = append(segments, types.Segment{
			Kind:       types.SegmentGeneral,
			Salutation: sal,
			Theme:      theme,
			Recipients: recipients,
		})
	}

	segments = append(segments, birthdaySegments(birthdayToday, date)...)
	return segments
}

// eligibleToday applies the cadence rules for the day's calendar facts.
func eligibleToday(c types.Cadence, isMonthStart, isMonday, hasEvent bool) bool {
	switch c {
	case types.CadenceMonthly:
		return isMonthStart
	case types.CadenceWeekly:
		return isMonday
	case types.CadenceHoliday:
		return hasEvent
	}
	return false
}

// themeFor picks the prompt-framing label for general segments.
// Priority: holiday > monthly > weekly > routine. This is framing only,
// never a targeting decision.
func themeFor(hasEvent, isMonthStart, isMonday bool) types.Theme {
	switch {
	case hasEvent:
		return types.ThemeHoliday
	case isMonthStart:
		return types.ThemeMonthly
	case isMonday:
		return types.ThemeWeekly
	default:
		return types.ThemeRoutine
	}
}

// birthdaySegments groups today's birthday subscribers into one cohort per
// (salutation, birth year) so a single generated message serves everyone
// turning the same age. A missing birth year lands in the "unknown"
// cohort with age 0.
func birthdaySegments(birthdayToday map[string]types.Subscriber, date time.Time) []types.Segment {
	type cohortKey struct {
		salutation types.Salutation
		cohort     string
	}

	recipients := make(map[cohortKey][]string)
	ages := make(map[cohortKey]int)
	for _, s := range birthdayToday {
		key := cohortKey{salutation: s.Salutation, cohort: types.UnknownCohort}
		age := 0
		if s.BirthYear != nil {
			key.cohort = strconv.Itoa(*s.BirthYear)
			// Age is current year minus birth year; the comparison date
			// is the birthday itself, so the birthday has always
			// "already occurred" within the year.
			age = date.Year() - *s.BirthYear
		}
		recipients[key] = append(recipients[key], s.Email)
		ages[key] = age
	}

	var segments []types.Segment
	for _, sal := range types.Salutations {
		var cohorts []string
		for key := range recipients {
			if key.salutation == sal {
				cohorts = append(cohorts, key.cohort)
			}
		}
		sortCohorts(cohorts)

		for _, cohort := range cohorts {
			key := cohortKey{salutation: sal, cohort: cohort}
			addrs := recipients[key]
			sort.Strings(addrs)
			segments = append(segments, types.Segment{
				Kind:       types.SegmentBirthday,
				Salutation: sal,
				Cohort:     cohort,
				Age:        ages[key],
				Recipients: addrs,
			})
		}
	}
	return segments
}

// sortCohorts orders cohort keys by birth year ascending, with the
// "unknown" sentinel last.
func sortCohorts(cohorts []string) {
	sort.Slice(cohorts, func(i, j int) bool {
		if cohorts[i] == types.UnknownCohort {
			return false
		}
		if cohorts[j] == types.UnknownCohort {
			return true
		}
		return cohorts[i] < cohorts[j]
	})
}
