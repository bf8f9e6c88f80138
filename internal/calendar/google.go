package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleConfig configures the Google Calendar mirror. Exactly one of
// ServiceAccountFile / ServiceAccountJSON must be set.
type GoogleConfig struct {
	CalendarID         string
	ServiceAccountFile string
	ServiceAccountJSON string
	Location           *time.Location
}

// Google mirrors appointments into a Google Calendar via a service account.
type Google struct {
	service    *gcal.Service
	calendarID string
	timezone   string
}

func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	if strings.TrimSpace(cfg.CalendarID) == "" {
		return nil, fmt.Errorf("google calendar: missing calendar id")
	}

	opts := []option.ClientOption{option.WithScopes(gcal.CalendarScope)}
	switch {
	case cfg.ServiceAccountFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.ServiceAccountFile))
	case cfg.ServiceAccountJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON)))
	default:
		return nil, fmt.Errorf("google calendar: missing service account credentials")
	}

	service, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google calendar: create service: %w", err)
	}

	tz := "UTC"
	if cfg.Location != nil {
		tz = cfg.Location.String()
	}
	return &Google{
		service:    service,
		calendarID: cfg.CalendarID,
		timezone:   tz,
	}, nil
}

func (g *Google) CreateEvent(ctx context.Context, ev Event) (string, error) {
	created, err := g.service.Events.Insert(g.calendarID, g.toGoogleEvent(ev)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("google calendar: insert event: %w", err)
	}
	return created.Id, nil
}

// UpdateEvent is read-modify-write so fields the mirror manages on its own
// (attendees, reminders) survive the update.
func (g *Google) UpdateEvent(ctx context.Context, eventID string, ev Event) error {
	existing, err := g.service.Events.Get(g.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("google calendar: get event %s: %w", eventID, err)
	}

	existing.Summary = ev.Summary
	existing.Description = ev.Description
	existing.Start = g.toDateTime(ev.Start)
	existing.End = g.toDateTime(ev.End)

	if _, err := g.service.Events.Update(g.calendarID, eventID, existing).Context(ctx).Do(); err != nil {
		return fmt.Errorf("google calendar: update event %s: %w", eventID, err)
	}
	return nil
}

// DeleteEvent tolerates events already gone on the mirror side.
func (g *Google) DeleteEvent(ctx context.Context, eventID string) error {
	err := g.service.Events.Delete(g.calendarID, eventID).Context(ctx).Do()
	if err == nil || isGone(err) {
		return nil
	}
	return fmt.Errorf("google calendar: delete event %s: %w", eventID, err)
}

func (g *Google) ListEvents(ctx context.Context, from, to time.Time, maxResults int) ([]Event, error) {
	if maxResults <= 0 {
		maxResults = 25
	}
	resp, err := g.service.Events.List(g.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(int64(maxResults)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("google calendar: list events: %w", err)
	}

	out := make([]Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		out = append(out, Event{
			Summary:     item.Summary,
			Description: item.Description,
			Start:       parseDateTime(item.Start),
			End:         parseDateTime(item.End),
		})
	}
	return out, nil
}

func (g *Google) toGoogleEvent(ev Event) *gcal.Event {
	return &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       g.toDateTime(ev.Start),
		End:         g.toDateTime(ev.End),
	}
}

func (g *Google) toDateTime(t time.Time) *gcal.EventDateTime {
	return &gcal.EventDateTime{
		DateTime: t.Format(time.RFC3339),
		TimeZone: g.timezone,
	}
}

func parseDateTime(dt *gcal.EventDateTime) time.Time {
	if dt == nil {
		return time.Time{}
	}
	if dt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, dt.DateTime); err == nil {
			return t
		}
	}
	// All-day events carry only a date.
	if dt.Date != "" {
		if t, err := time.Parse("2006-01-02", dt.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 404 || apiErr.Code == 410
	}
	return false
}
