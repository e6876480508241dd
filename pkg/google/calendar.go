package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/harrisonrobin/notedo/pkg/colors"
	"github.com/harrisonrobin/notedo/pkg/index"
	"github.com/harrisonrobin/notedo/pkg/logging"
	"github.com/harrisonrobin/notedo/pkg/todoist"
	"github.com/harrisonrobin/notedo/pkg/util"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

// CalendarClient mirrors Todoist tasks into one Google calendar.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	index      *index.EventIndex
	colors     *colors.ColorCache
	now        func() time.Time
}

func NewCalendarClient(srv *calendar.Service, calendarID string, idx *index.EventIndex, cache *colors.ColorCache) *CalendarClient {
	return &CalendarClient{srv: srv, calendarID: calendarID, index: idx, colors: cache, now: time.Now}
}

// MirrorResult counts what Mirror did.
type MirrorResult struct {
	Synced  int
	Deleted int
	Failed  int
}

// Mirror makes the calendar show every open task with a due date. Events of
// indexed tasks that are no longer in tasks are deleted. Per-task failures
// are logged and counted.
func (c *CalendarClient) Mirror(ctx context.Context, tasks []todoist.Task, projects []todoist.Project) (MirrorResult, error) {
	var res MirrorResult

	names := make(map[string]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}

	wanted := make(map[string]bool)
	for i := range tasks {
		task := &tasks[i]
		if task.IsCompleted || task.Due == nil {
			continue
		}
		wanted[task.ID] = true
		if _, err := c.SyncEvent(ctx, task, names[task.ProjectID]); err != nil {
			logging.Info("calendar", "error syncing task %s: %v", task.ID, err)
			res.Failed++
			continue
		}
		res.Synced++
	}

	for _, taskID := range c.index.TaskIDs() {
		if wanted[taskID] {
			continue
		}
		if err := c.DeleteEvent(ctx, c.index.Get(taskID)); err != nil && !isGone(err) {
			logging.Info("calendar", "error deleting event for task %s: %v", taskID, err)
			res.Failed++
			continue
		}
		c.index.Remove(taskID)
		res.Deleted++
	}

	if err := c.index.Save(); err != nil {
		return res, fmt.Errorf("saving event index: %w", err)
	}
	if err := c.colors.Save(); err != nil {
		return res, fmt.Errorf("saving project colours: %w", err)
	}
	logging.Info("calendar", "mirrored %d tasks, deleted %d events, %d failures", res.Synced, res.Deleted, res.Failed)
	return res, nil
}

// SyncEvent creates a new event or updates an existing one.
func (c *CalendarClient) SyncEvent(ctx context.Context, task *todoist.Task, project string) (*calendar.Event, error) {
	event, err := util.ConvertTaskToCalendarEvent(task, project, c.colors.GetColorID(project), c.now())
	if err != nil {
		return nil, err
	}

	var existingEvent *calendar.Event
	if eventID := c.index.Get(task.ID); eventID != "" {
		existingEvent, err = c.srv.Events.Get(c.calendarID, eventID).Context(ctx).Do()
		if err != nil || existingEvent.Status == "cancelled" {
			existingEvent = nil
		}
	}

	if existingEvent == nil {
		existingEvent, err = c.GetEventByTaskID(ctx, task.ID)
		if err != nil {
			return nil, fmt.Errorf("error searching for event: %w", err)
		}
	}

	if existingEvent != nil {
		patch, err := util.EventNeedsUpdate(existingEvent, event)
		if err != nil {
			return nil, fmt.Errorf("could not compare task with its calendar event: %w", err)
		}
		if patch == nil {
			c.index.Set(task.ID, existingEvent.Id)
			return existingEvent, nil
		}
		updatedEvent, err := c.PatchEvent(ctx, existingEvent.Id, patch)
		if err != nil {
			return nil, err
		}
		logging.Debug("calendar", "patched event %s for task %s", updatedEvent.Id, task.ID)
		c.index.Set(task.ID, updatedEvent.Id)
		return updatedEvent, nil
	}

	createdEvent, err := c.srv.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	logging.Debug("calendar", "created event %s for task %s", createdEvent.Id, task.ID)
	c.index.Set(task.ID, createdEvent.Id)
	return createdEvent, nil
}

// PatchEvent performs a partial update on an event.
func (c *CalendarClient) PatchEvent(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do()
}

func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	return c.srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
}

// GetEventByTaskID searches for the event carrying the task id property.
func (c *CalendarClient) GetEventByTaskID(ctx context.Context, taskID string) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", util.TaskIDProperty, taskID)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	for _, item := range events.Items {
		if id, ok := util.TaskIDOf(item); ok && id == taskID {
			return item, nil
		}
	}
	return nil, nil
}

func isGone(err error) bool {
	var e *googleapi.Error
	if errors.As(err, &e) {
		return e.Code == http.StatusNotFound || e.Code == http.StatusGone
	}
	return false
}
