package model

import (
	"errors"
	"strings"

	"github.com/harrisonrobin/notedo/pkg/todoist"
)

var ErrEmptyContent = errors.New("task content is empty")

// Draft is a task as entered by the user, before it is sent to Todoist.
type Draft struct {
	Content     string
	Description string
	ProjectID   string
	Labels      []string
	Priority    int

	// DueDate is YYYY-MM-DD, DueTime HH:MM. Repeat is a Todoist
	// recurrence phrase such as "every week".
	DueDate string
	DueTime string
	Repeat  string

	// Duration in minutes.
	Duration int

	// Reminder is a Todoist natural-language reminder due string.
	Reminder string
}

// IsRepeating reports whether the task recurs.
func (d Draft) IsRepeating() bool {
	return strings.TrimSpace(d.Repeat) != ""
}

// DueString joins date, time and recurrence into a Todoist due string. The
// time is only used when timeEnabled is set. Without a date it returns "".
func (d Draft) DueString(timeEnabled bool) string {
	if d.DueDate == "" {
		return ""
	}
	due := d.DueDate
	if timeEnabled && d.DueTime != "" {
		due += " at " + d.DueTime
	}
	if d.IsRepeating() {
		due += " " + d.Repeat
	}
	return due
}

// Validate checks the draft can be created.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.Content) == "" {
		return ErrEmptyContent
	}
	return nil
}

// Request builds the create-task body.
func (d Draft) Request(timeEnabled bool) todoist.CreateTaskRequest {
	req := todoist.CreateTaskRequest{
		Content:   d.Content,
		ProjectID: d.ProjectID,
		DueString: d.DueString(timeEnabled),
		Priority:  clampPriority(d.Priority),
	}
	if strings.TrimSpace(d.Description) != "" {
		req.Description = d.Description
	}
	if len(d.Labels) > 0 {
		req.Labels = d.Labels
	}
	if d.Duration > 0 {
		req.Duration = d.Duration
		req.DurationUnit = "minute"
	}
	return req
}

func clampPriority(p int) int {
	switch {
	case p < 1:
		return 1
	case p > 4:
		return 4
	default:
		return p
	}
}
