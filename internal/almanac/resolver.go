// Package almanac resolves whether a given calendar date coincides with a
// notable event: a traditional lunar festival, a solar term, a holiday
// known to the remote calendar service, or an entry in the local festival
// dataset. Sources form an ordered fallback chain; the first one that
// yields a name wins, and a failing source is treated as "no event" for
// that source rather than an error.
package almanac

import (
	"container/list"
	"context"
	"log/slog"
	"time"

	"github.com/6tail/lunar-go/calendar"

	"foreversister/internal/external"
	"foreversister/internal/types"
)

// DefaultUpcomingDays is the look-ahead window for upcoming-event
// resolution when the caller does not specify one.
const DefaultUpcomingDays = 7

// Resolver walks the event source chain for single dates and for the
// upcoming-days window.
type Resolver struct {
	remote  external.CalendarService // nil when no remote service is configured
	dataset *Dataset
	logger  *slog.Logger
}

// NewResolver creates a Resolver. remote may be nil; dataset must not be.
func NewResolver(remote external.CalendarService, dataset *Dataset, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		remote:  remote,
		dataset: dataset,
		logger:  logger,
	}
}

// ResolveEvent returns the notable event for the given date, or nil when
// the date is an ordinary day. Source priority:
//  1. Lunar-calendar festivals and the solar term for the exact date.
//  2. The remote calendar service (errors swallowed, logged at debug).
//  3. The local festival dataset matched by month-day.
func (r *Resolver) ResolveEvent(ctx context.Context, date time.Time) *types.Event {
	if name := lunarEventName(date); name != "" {
		return &types.Event{Name: name}
	}

	if name := r.remoteEventName(ctx, date); name != "" {
		return &types.Event{Name: name}
	}

	if name := r.dataset.Lookup(date); name != "" {
		return &types.Event{Name: name}
	}

	return nil
}

// ResolveUpcoming walks the same source chain for each of the next days
// dates (starting tomorrow) and returns the days that produced a name, in
// date order. Failures for individual days are skipped, never fatal to the
// whole batch.
func (r *Resolver) ResolveUpcoming(ctx context.Context, date time.Time, days int) []types.UpcomingEvent {
	if days <= 0 {
		days = DefaultUpcomingDays
	}

	var out []types.UpcomingEvent
	for i := 1; i <= days; i++ {
		d := date.AddDate(0, 0, i)
		event := r.ResolveEvent(ctx, d)
		if event == nil {
			continue
		}
		out = append(out, types.UpcomingEvent{
			Date: types.DateKey(d),
			Name: event.Name,
		})
	}
	return out
}

// remoteEventName queries the remote calendar service when one is
// configured. Any transport or schema error is swallowed and treated as
// "no event" for this source.
func (r *Resolver) remoteEventName(ctx context.Context, date time.Time) string {
	if r.remote == nil {
		return ""
	}
	name, err := r.remote.Lookup(ctx, types.DateKey(date))
	if err != nil {
		r.logger.DebugContext(ctx, "remote calendar lookup failed, falling through",
			"date", types.DateKey(date),
			"error", err,
		)
		return ""
	}
	return name
}

// lunarEventName returns the primary named lunar event for the date:
// traditional festivals first, then the less common ones, then the solar
// term if the date lands exactly on one. The first name found wins.
func lunarEventName(date time.Time) string {
	solar := calendar.NewSolarFromYmd(date.Year(), int(date.Month()), date.Day())
	lunar := solar.GetLunar()

	if name := firstString(lunar.GetFestivals()); name != "" {
		return name
	}
	if name := firstString(lunar.GetOtherFestivals()); name != "" {
		return name
	}
	return lunar.GetJieQi()
}

// firstString returns the first string element of a lunar-go list, or "".
func firstString(l *list.List) string {
	if l == nil {
		return ""
	}
	for e := l.Front(); e != nil; e = e.Next() {
		if s, ok := e.Value.(string); ok && s != "" {
			return s
		}
	}
	return ""
}
