// Package content turns a day's audience segments into finished mail
// content: a two-step chat dialogue produces the body and an image prompt,
// the image model renders the illustration, and the result lands in the
// day cache as one all-or-nothing snapshot.
package content

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"foreversister/internal/almanac"
	"foreversister/internal/audience"
	"foreversister/internal/external"
	"foreversister/internal/types"
)

// imageSize is the fixed render size requested from the image model.
const imageSize = "1920x1080"

// SubscriberSource supplies the subscriber list at generation time.
type SubscriberSource interface {
	ListSubscribers(ctx context.Context) ([]types.Subscriber, error)
}

// EventSource resolves the day's event and the upcoming-events window.
type EventSource interface {
	ResolveEvent(ctx context.Context, date time.Time) *types.Event
	ResolveUpcoming(ctx context.Context, date time.Time, days int) []types.UpcomingEvent
}

// CacheStore is the day-cache dependency of the generator.
type CacheStore interface {
	Exists(date string) bool
	Write(date string, items []types.CacheItem) error
	WriteImage(name string, data []byte) (string, error)
}

// Generator runs the daily content pipeline for one calendar date.
type Generator struct {
	subscribers SubscriberSource
	events      EventSource
	chat        external.ChatService
	image       external.ImageService
	limiter     *IntervalLimiter
	cache       CacheStore
	logger      *slog.Logger
}

// NewGenerator wires the content pipeline. All dependencies are required
// except logger.
func NewGenerator(
	subscribers SubscriberSource,
	events EventSource,
	chat external.ChatService,
	image external.ImageService,
	limiter *IntervalLimiter,
	cache CacheStore,
	logger *slog.Logger,
) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		subscribers: subscribers,
		events:      events,
		chat:        chat,
		image:       image,
		limiter:     limiter,
		cache:       cache,
		logger:      logger,
	}
}

// Run generates the full day cache for the date of now. When a cache for
// that date already exists the run is skipped unless overwrite is set.
//
// Any failure — a chat call, an image render, a cache write — aborts the
// whole run without writing a document, so a partial day never becomes
// deliverable. A day with zero eligible segments still writes an empty
// document so delivery can tell "nothing to send" from "never generated".
func (g *Generator) Run(ctx context.Context, now time.Time, overwrite bool) error {
	date := types.DateKey(now)

	if g.cache.Exists(date) && !overwrite {
		g.logger.InfoContext(ctx, "day cache already exists, skipping generation", "date", date)
		return nil
	}

	subscribers, err := g.subscribers.ListSubscribers(ctx)
	if err != nil {
		return err
	}

	event := g.events.ResolveEvent(ctx, now)
	upcoming := g.events.ResolveUpcoming(ctx, now, almanac.DefaultUpcomingDays)

	segments := audience.Segment(subscribers, now, event)

	g.logger.InfoContext(ctx, "starting content generation",
		"date", date,
		"subscribers", len(subscribers),
		"segments", len(segments),
		"event", eventName(event),
	)

	items := make([]types.CacheItem, 0, len(segments))
	for _, seg := range segments {
		item, err := g.generateItem(ctx, now, seg, event, upcoming)
		if err != nil {
			g.logger.ErrorContext(ctx, "segment generation failed, aborting run",
				"date", date,
				"kind", string(seg.Kind),
				"salutation", string(seg.Salutation),
				"error", err,
			)
			return err
		}
		items = append(items, item)
	}

	if err := g.cache.Write(date, items); err != nil {
		return err
	}

	g.logger.InfoContext(ctx, "content generation complete",
		"date", date,
		"items", len(items),
	)
	return nil
}

// generateItem produces one segment's content: body text, subject line,
// and rendered illustration.
func (g *Generator) generateItem(ctx context.Context, now time.Time, seg types.Segment, event *types.Event, upcoming []types.UpcomingEvent) (types.CacheItem, error) {
	text, err := g.generateText(ctx, now, seg, upcoming)
	if err != nil {
		return types.CacheItem{}, err
	}

	subject, err := g.generateSubject(ctx, seg, event, text)
	if err != nil {
		return types.CacheItem{}, err
	}

	imagePath, err := g.generateImage(ctx, now, seg, text)
	if err != nil {
		return types.CacheItem{}, err
	}

	return types.CacheItem{
		Kind:       seg.Kind,
		Salutation: seg.Salutation,
		Cohort:     seg.Cohort,
		Recipients: seg.Recipients,
		Subject:    subject,
		Text:       text,
		ImagePath:  imagePath,
	}, nil
}

// generateText runs the first chat step: the persona system prompt plus
// the segment-specific user instruction.
func (g *Generator) generateText(ctx context.Context, now time.Time, seg types.Segment, upcoming []types.UpcomingEvent) (string, error) {
	var user string
	switch seg.Kind {
	case types.SegmentBirthday:
		user = birthdayUserPrompt(seg.Salutation, seg.Age)
	default:
		user = generalUserPrompt(types.DateCN(now), seg.Salutation, seg.Theme, upcoming)
	}

	return g.chat.Complete(ctx, []external.ChatMessage{
		{Role: "system", Content: systemPrompt(seg.Salutation)},
		{Role: "user", Content: user},
	})
}

// generateSubject picks the subject line. Birthday segments and event days
// use templated subjects; ordinary general days ask the model for a title
// derived from the finished body.
func (g *Generator) generateSubject(ctx context.Context, seg types.Segment, event *types.Event, text string) (string, error) {
	if seg.Kind == types.SegmentBirthday {
		return "生日快乐！", nil
	}
	if event != nil {
		return event.Name + "快乐！", nil
	}
	return g.chat.Complete(ctx, titleMessages(text))
}

// generateImage runs the second chat step to derive an image prompt from
// the body, waits out the process-wide render interval, renders, and
// stores the blob. The base negative prompt is prepended for general
// segments only.
func (g *Generator) generateImage(ctx context.Context, now time.Time, seg types.Segment, text string) (string, error) {
	var spec struct {
		Prompt         string `json:"prompt"`
		NegativePrompt string `json:"negative_prompt"`
	}
	if err := g.chat.CompleteJSON(ctx, imagePromptMessages(text), &spec); err != nil {
		return "", err
	}

	negative := spec.NegativePrompt
	if seg.Kind == types.SegmentGeneral {
		negative = baseNegativePrompt + negative
	}

	g.limiter.Wait()
	data, err := g.image.Generate(ctx, spec.Prompt, negative, imageSize)
	if err != nil {
		return "", err
	}
	g.limiter.Record()

	return g.cache.WriteImage(imageName(seg, types.DateKey(now)), data)
}

// imageName builds the deterministic blob name for a segment and date.
func imageName(seg types.Segment, date string) string {
	if seg.Kind == types.SegmentBirthday {
		return fmt.Sprintf("birthday_%s_%s_%s.png", seg.Salutation, seg.Cohort, date)
	}
	return fmt.Sprintf("general_%s_%s.png", seg.Salutation, date)
}

func eventName(event *types.Event) string {
	if event == nil {
		return ""
	}
	return event.Name
}
