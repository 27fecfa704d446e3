// Package types defines the shared domain model for the foreversister
// mailer: subscribers, calendar events, audience segments, and the
// generated day cache that decouples content generation from delivery.
package types

import (
	"fmt"
	"time"
)

// Cadence is a subscriber's requested message frequency.
type Cadence string

const (
	CadenceMonthly Cadence = "monthly"
	CadenceWeekly  Cadence = "weekly"
	CadenceHoliday Cadence = "holiday"
)

// Valid reports whether the cadence is one of the supported values.
func (c Cadence) Valid() bool {
	switch c {
	case CadenceMonthly, CadenceWeekly, CadenceHoliday:
		return true
	}
	return false
}

// Salutation is the address form a subscriber signed up with. Exactly two
// forms are supported; the generated persona varies only on this value.
type Salutation string

const (
	SalutationBrother Salutation = "哥哥"
	SalutationSister  Salutation = "姐姐"
)

// Salutations lists the supported address forms in their stable output
// order. Segments and cache items are always emitted in this order.
var Salutations = []Salutation{SalutationBrother, SalutationSister}

// Valid reports whether the salutation is one of the two supported forms.
func (s Salutation) Valid() bool {
	return s == SalutationBrother || s == SalutationSister
}

// Subscriber is a single mailing-list member as read from the subscriber
// store. The birth fields are either all set or all nil; a subscriber
// without a birth date never enters a birthday cohort.
type Subscriber struct {
	Email      string
	Cadence    Cadence
	Salutation Salutation
	BirthYear  *int
	BirthMonth *int
	BirthDay   *int
}

// BirthdayOn reports whether the subscriber's birthday falls on the given
// month and day.
func (s Subscriber) BirthdayOn(month time.Month, day int) bool {
	return s.BirthMonth != nil && s.BirthDay != nil &&
		*s.BirthMonth == int(month) && *s.BirthDay == day
}

// Event is a named calendar occasion (festival, solar term, public
// holiday) resolved for a specific date. Resolved fresh on every run and
// never persisted on its own.
type Event struct {
	Name string `json:"name"`
}

// UpcomingEvent is one entry of the look-ahead list handed to the content
// generator for prompt framing. Date keeps the formatting of whichever
// source produced it.
type UpcomingEvent struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// SegmentKind discriminates general segments from birthday cohorts.
type SegmentKind string

const (
	SegmentGeneral  SegmentKind = "general"
	SegmentBirthday SegmentKind = "birthday"
)

// Theme labels the framing of a general segment's message. It is purely
// prompt context, never a targeting decision.
type Theme string

const (
	ThemeHoliday Theme = "节日问候"
	ThemeMonthly Theme = "每月问候"
	ThemeWeekly  Theme = "每周问候"
	ThemeRoutine Theme = "日常问候"
)

// UnknownCohort is the birthday cohort key used when a subscriber has a
// birth month/day on record but no birth year. Age is reported as 0.
const UnknownCohort = "unknown"

// Segment is one batch of recipients sharing a single generated message
// for one day. The union of a day's segments partitions the eligible
// subscribers: no address appears in more than one segment.
type Segment struct {
	Kind       SegmentKind
	Salutation Salutation
	Recipients []string

	// General segments only.
	Theme Theme

	// Birthday segments only. Cohort is the birth year as a string, or
	// UnknownCohort; Age is the current year minus the birth year.
	Cohort string
	Age    int
}

// CacheItem is one segment's generated content, immutable once written.
type CacheItem struct {
	Kind       SegmentKind `json:"type"`
	Salutation Salutation  `json:"salutation"`
	Cohort     string      `json:"group,omitempty"`
	Recipients []string    `json:"recipients"`
	Subject    string      `json:"subject"`
	Text       string      `json:"text"`
	ImagePath  string      `json:"image_path"`
}

// DayCache is the persisted, date-keyed bundle of all segments' generated
// content for one calendar day. Written once by the generator, read (never
// mutated) by the delivery sender, and retained as an audit trail.
type DayCache struct {
	Date  string      `json:"date"`
	Items []CacheItem `json:"items"`
}

// DateKey formats a time as the calendar-date key used for cache files
// and image names.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// DateCN formats a date the way the prompts present it to the model.
func DateCN(t time.Time) string {
	return fmt.Sprintf("%d年%d月%d日", t.Year(), int(t.Month()), t.Day())
}
