package util

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/harrisonrobin/notedo/pkg/tasklines"
	"github.com/harrisonrobin/notedo/pkg/todoist"
	"google.golang.org/api/calendar/v3"
)

// TaskIDProperty is the private extended property holding the task id.
const TaskIDProperty = "todoist_id"

const (
	dateLayout      = "2006-01-02"
	floatingLayout  = "2006-01-02T15:04:05"
	defaultDuration = 30 * time.Minute
)

var taskIDDescRegex = regexp.MustCompile(`ID: (\d+)`)

// Due is a parsed task due date. AllDay tasks only carry a date.
type Due struct {
	Start  time.Time
	AllDay bool
}

// ParseDue reads the due block of a task. Datetimes without a zone are
// taken in loc.
func ParseDue(due *todoist.Due, loc *time.Location) (Due, error) {
	if due == nil {
		return Due{}, fmt.Errorf("task has no due date")
	}
	if due.Datetime != "" {
		if t, err := time.Parse(time.RFC3339, due.Datetime); err == nil {
			return Due{Start: t}, nil
		}
		t, err := time.ParseInLocation(floatingLayout, due.Datetime, loc)
		if err != nil {
			return Due{}, fmt.Errorf("invalid due datetime %q: %w", due.Datetime, err)
		}
		return Due{Start: t}, nil
	}
	t, err := time.ParseInLocation(dateLayout, due.Date, loc)
	if err != nil {
		return Due{}, fmt.Errorf("invalid due date %q: %w", due.Date, err)
	}
	return Due{Start: t, AllDay: true}, nil
}

// TaskDuration is the task's duration, or zero when it has none.
func TaskDuration(task *todoist.Task) time.Duration {
	if task.Duration == nil || task.Duration.Amount <= 0 {
		return 0
	}
	switch task.Duration.Unit {
	case "minute":
		return time.Duration(task.Duration.Amount) * time.Minute
	case "day":
		return time.Duration(task.Duration.Amount) * 24 * time.Hour
	}
	return 0
}

// ConvertTaskToCalendarEvent builds the event mirroring task. Overdue tasks
// get a "!" prefix.
func ConvertTaskToCalendarEvent(task *todoist.Task, project, colorID string, now time.Time) (*calendar.Event, error) {
	if task == nil {
		return nil, fmt.Errorf("could not convert nil Task")
	}
	due, err := ParseDue(task.Due, now.Location())
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", task.ID, err)
	}

	event := &calendar.Event{
		Summary:     task.Content,
		ColorId:     colorID,
		Description: describe(task, project),
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{TaskIDProperty: task.ID},
		},
	}
	if isOverdue(due, now) {
		event.Summary = "! " + task.Content
	}

	dur := TaskDuration(task)
	if due.AllDay {
		days := int(dur / (24 * time.Hour))
		if days < 1 {
			days = 1
		}
		event.Start = &calendar.EventDateTime{Date: due.Start.Format(dateLayout)}
		event.End = &calendar.EventDateTime{Date: due.Start.AddDate(0, 0, days).Format(dateLayout)}
		return event, nil
	}

	if dur <= 0 {
		dur = defaultDuration
	}
	event.Start = &calendar.EventDateTime{DateTime: due.Start.UTC().Format(time.RFC3339)}
	event.End = &calendar.EventDateTime{DateTime: due.Start.Add(dur).UTC().Format(time.RFC3339)}
	return event, nil
}

func isOverdue(due Due, now time.Time) bool {
	if due.AllDay {
		return due.Start.Format(dateLayout) < now.Format(dateLayout)
	}
	return due.Start.Before(now)
}

func describe(task *todoist.Task, project string) string {
	var sb strings.Builder
	if len(task.Labels) > 0 {
		for _, l := range task.Labels {
			fmt.Fprintf(&sb, "#%s ", l)
		}
		sb.WriteString("\n\n")
	}
	if project != "" {
		fmt.Fprintf(&sb, "Project: %s\n", project)
	}
	fmt.Fprintf(&sb, "Priority: %s\n", tasklines.PriorityText(task.Priority))
	if task.Due != nil && task.Due.IsRecurring {
		fmt.Fprintf(&sb, "Repeats: %s\n", task.Due.String)
	}
	fmt.Fprintf(&sb, "ID: %s\n", task.ID)
	if task.URL != "" {
		fmt.Fprintf(&sb, "URL: %s\n", task.URL)
	}
	if task.Description != "" {
		sb.WriteString("\nNotes:\n")
		for _, line := range strings.Split(task.Description, "\n") {
			fmt.Fprintf(&sb, "‣ %s\n", line)
		}
	}
	return sb.String()
}

// EventNeedsUpdate returns a patch when the summary, description, colour
// or times of existingEvent differ from targetEvent, and nil otherwise.
func EventNeedsUpdate(existingEvent, targetEvent *calendar.Event) (*calendar.Event, error) {
	patch := &calendar.Event{}
	needsUpdate := false

	if existingEvent.Summary != targetEvent.Summary {
		patch.Summary = targetEvent.Summary
		needsUpdate = true
	}
	if existingEvent.Description != targetEvent.Description {
		patch.Description = targetEvent.Description
		needsUpdate = true
	}
	if existingEvent.ColorId != targetEvent.ColorId {
		patch.ColorId = targetEvent.ColorId
		needsUpdate = true
	}

	sameStart, err := sameTime(existingEvent.Start, targetEvent.Start)
	if err != nil {
		return nil, err
	}
	sameEnd, err := sameTime(existingEvent.End, targetEvent.End)
	if err != nil {
		return nil, err
	}
	if !sameStart || !sameEnd {
		patch.Start = clearOther(targetEvent.Start)
		patch.End = clearOther(targetEvent.End)
		needsUpdate = true
	}

	if needsUpdate {
		return patch, nil
	}
	return nil, nil
}

func sameTime(a, b *calendar.EventDateTime) (bool, error) {
	if a == nil || b == nil {
		return a == b, nil
	}
	if a.Date != "" || b.Date != "" {
		return a.Date == b.Date && (a.DateTime == "") == (b.DateTime == ""), nil
	}
	ta, err := time.Parse(time.RFC3339, a.DateTime)
	if err != nil {
		return false, err
	}
	tb, err := time.Parse(time.RFC3339, b.DateTime)
	if err != nil {
		return false, err
	}
	return ta.Equal(tb), nil
}

// clearOther nulls the unused field so a patch can switch an event between
// all-day and timed.
func clearOther(t *calendar.EventDateTime) *calendar.EventDateTime {
	if t == nil {
		return nil
	}
	out := *t
	if out.Date != "" {
		out.NullFields = append(out.NullFields, "DateTime")
	} else {
		out.NullFields = append(out.NullFields, "Date")
	}
	return &out
}

// TaskIDOf returns the task an event mirrors, from its extended property or
// failing that its description.
func TaskIDOf(event *calendar.Event) (string, bool) {
	if event.ExtendedProperties != nil {
		if id := event.ExtendedProperties.Private[TaskIDProperty]; id != "" {
			return id, true
		}
	}
	return GetTaskIDFromEventDescription(event.Description)
}

// GetTaskIDFromEventDescription parses the task ID from the event description.
func GetTaskIDFromEventDescription(description string) (string, bool) {
	matches := taskIDDescRegex.FindStringSubmatch(description)
	if len(matches) > 1 {
		return matches[1], true
	}
	return "", false
}
