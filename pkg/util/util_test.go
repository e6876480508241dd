package util

import (
	"strings"
	"testing"
	"time"

	"github.com/harrisonrobin/notedo/pkg/todoist"
	"google.golang.org/api/calendar/v3"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestConvertTaskToCalendarEvent(t *testing.T) {
	task := &todoist.Task{
		ID:          "123",
		Content:     "Write report",
		Description: "Note 1",
		URL:         "https://todoist.com/app/task/123",
		Priority:    4,
		Labels:      []string{"buy", "food"},
		Due:         &todoist.Due{Date: "2025-03-02", Datetime: "2025-03-02T09:00:00Z", String: "tomorrow 9am"},
		Duration:    &todoist.Duration{Amount: 90, Unit: "minute"},
	}

	event, err := ConvertTaskToCalendarEvent(task, "Work", "5", now)
	if err != nil {
		t.Fatalf("ConvertTaskToCalendarEvent failed: %v", err)
	}

	if event.ExtendedProperties == nil || event.ExtendedProperties.Private[TaskIDProperty] != "123" {
		t.Fatalf("Expected %s property, got %+v", TaskIDProperty, event.ExtendedProperties)
	}
	if event.Summary != "Write report" || event.ColorId != "5" {
		t.Errorf("Unexpected summary/colour: %q %q", event.Summary, event.ColorId)
	}
	if event.Start.DateTime != "2025-03-02T09:00:00Z" || event.End.DateTime != "2025-03-02T10:30:00Z" {
		t.Errorf("Unexpected times: %s - %s", event.Start.DateTime, event.End.DateTime)
	}
	for _, want := range []string{"#buy #food", "Project: Work", "Priority: P1", "ID: 123", "‣ Note 1"} {
		if !strings.Contains(event.Description, want) {
			t.Errorf("Expected description to contain %q, got: %s", want, event.Description)
		}
	}
	if id, ok := TaskIDOf(&calendar.Event{Description: event.Description}); !ok || id != "123" {
		t.Errorf("Expected id from description, got %q", id)
	}
}

func TestConvertAllDayAndOverdue(t *testing.T) {
	task := &todoist.Task{ID: "9", Content: "Pay rent", Due: &todoist.Due{Date: "2025-02-28"}}
	event, err := ConvertTaskToCalendarEvent(task, "", "8", now)
	if err != nil {
		t.Fatalf("ConvertTaskToCalendarEvent failed: %v", err)
	}
	if event.Start.Date != "2025-02-28" || event.End.Date != "2025-03-01" || event.Start.DateTime != "" {
		t.Errorf("Unexpected all-day times: %+v %+v", event.Start, event.End)
	}
	if event.Summary != "! Pay rent" {
		t.Errorf("Expected overdue prefix, got %q", event.Summary)
	}

	task.Due.Date = "2025-03-01"
	event, _ = ConvertTaskToCalendarEvent(task, "", "8", now)
	if event.Summary != "Pay rent" {
		t.Errorf("Expected today's all-day task not overdue, got %q", event.Summary)
	}

	if _, err := ConvertTaskToCalendarEvent(&todoist.Task{ID: "1"}, "", "8", now); err == nil {
		t.Error("Expected error for task without due date")
	}
}

func TestEventNeedsUpdate(t *testing.T) {
	timed := &calendar.Event{
		Summary: "a",
		Start:   &calendar.EventDateTime{DateTime: "2025-03-01T10:00:00+01:00"},
		End:     &calendar.EventDateTime{DateTime: "2025-03-01T10:30:00+01:00"},
	}
	same := &calendar.Event{
		Summary: "a",
		Start:   &calendar.EventDateTime{DateTime: "2025-03-01T09:00:00Z"},
		End:     &calendar.EventDateTime{DateTime: "2025-03-01T09:30:00Z"},
	}
	patch, err := EventNeedsUpdate(timed, same)
	if err != nil || patch != nil {
		t.Fatalf("Expected no patch for equal instants, got %+v, %v", patch, err)
	}

	allDay := &calendar.Event{
		Summary: "b",
		Start:   &calendar.EventDateTime{Date: "2025-03-01"},
		End:     &calendar.EventDateTime{Date: "2025-03-02"},
	}
	patch, err = EventNeedsUpdate(timed, allDay)
	if err != nil {
		t.Fatalf("EventNeedsUpdate failed: %v", err)
	}
	if patch == nil || patch.Summary != "b" || patch.Start.Date != "2025-03-01" {
		t.Fatalf("Expected summary and time patch, got %+v", patch)
	}
	if len(patch.Start.NullFields) != 1 || patch.Start.NullFields[0] != "DateTime" {
		t.Errorf("Expected DateTime cleared, got %v", patch.Start.NullFields)
	}
	if len(allDay.Start.NullFields) != 0 {
		t.Error("Expected target event left untouched")
	}
}
