package google

import (
	"context"
	"fmt"

	"github.com/harrisonrobin/notedo/pkg/auth"
	"github.com/harrisonrobin/notedo/pkg/colors"
	"github.com/harrisonrobin/notedo/pkg/index"
	"google.golang.org/api/calendar/v3"
)

// NewClient authenticates and looks up the calendar named calendarName.
func NewClient(ctx context.Context, calendarName string, idx *index.EventIndex, cache *colors.ColorCache) (*CalendarClient, error) {
	srv, err := auth.GetCalendarService(ctx)
	if err != nil {
		return nil, err
	}

	calendarID, err := FindCalendar(ctx, srv, calendarName)
	if err != nil {
		return nil, err
	}
	return NewCalendarClient(srv, calendarID, idx, cache), nil
}

// FindCalendar returns the id of the calendar whose summary is name.
func FindCalendar(ctx context.Context, srv *calendar.Service, name string) (string, error) {
	calendarList, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to retrieve calendar list: %w", err)
	}
	for _, item := range calendarList.Items {
		if item.Summary == name {
			return item.Id, nil
		}
	}
	return "", fmt.Errorf("calendar '%s' not found", name)
}
