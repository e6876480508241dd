package todoist

// Due is the due block of a task. Date is always set; Datetime only for
// tasks with a time of day.
type Due struct {
	Date        string `json:"date"`
	String      string `json:"string"`
	Datetime    string `json:"datetime,omitempty"`
	IsRecurring bool   `json:"is_recurring,omitempty"`
}

type Duration struct {
	Amount int    `json:"amount"`
	Unit   string `json:"unit"`
}

// Task is a Todoist task as returned by the REST API. Priority runs from 1
// (normal) to 4 (urgent).
type Task struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Description string    `json:"description"`
	ProjectID   string    `json:"project_id"`
	URL         string    `json:"url"`
	Priority    int       `json:"priority"`
	Labels      []string  `json:"labels"`
	IsCompleted bool      `json:"is_completed"`
	Due         *Due      `json:"due,omitempty"`
	Duration    *Duration `json:"duration,omitempty"`
}

type Project struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// CreateTaskRequest is the body of POST /tasks. At most one of the due
// fields is sent.
type CreateTaskRequest struct {
	Content      string   `json:"content"`
	Description  string   `json:"description,omitempty"`
	ProjectID    string   `json:"project_id,omitempty"`
	DueString    string   `json:"due_string,omitempty"`
	DueDatetime  string   `json:"due_datetime,omitempty"`
	DueDate      string   `json:"due_date,omitempty"`
	Labels       []string `json:"labels,omitempty"`
	Priority     int      `json:"priority,omitempty"`
	Duration     int      `json:"duration,omitempty"`
	DurationUnit string   `json:"duration_unit,omitempty"`
}

type reminderRequest struct {
	ItemID string      `json:"item_id"`
	Due    reminderDue `json:"due"`
}

type reminderDue struct {
	String string `json:"string"`
}
