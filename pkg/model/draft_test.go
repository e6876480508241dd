package model

import "testing"

func TestDueString(t *testing.T) {
	tests := []struct {
		name        string
		draft       Draft
		timeEnabled bool
		want        string
	}{
		{"no date", Draft{DueTime: "09:00", Repeat: "every day"}, true, ""},
		{"date only", Draft{DueDate: "2025-03-01"}, true, "2025-03-01"},
		{"repeat without time", Draft{DueDate: "2025-03-01", Repeat: "every week"}, false, "2025-03-01 every week"},
		{"time ignored when disabled", Draft{DueDate: "2025-03-01", DueTime: "09:30"}, false, "2025-03-01"},
		{"time and repeat", Draft{DueDate: "2025-03-01", DueTime: "09:30", Repeat: "every month"}, true, "2025-03-01 at 09:30 every month"},
		{"blank repeat", Draft{DueDate: "2025-03-01", Repeat: "  "}, true, "2025-03-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.draft.DueString(tt.timeEnabled); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRequest(t *testing.T) {
	d := Draft{
		Content:     "Buy milk",
		Description: "   ",
		ProjectID:   "p1",
		Priority:    9,
		DueDate:     "2025-03-01",
		Duration:    30,
	}
	req := d.Request(false)
	if req.Content != "Buy milk" || req.ProjectID != "p1" {
		t.Errorf("Unexpected request: %+v", req)
	}
	if req.Description != "" {
		t.Errorf("Expected blank description dropped, got %q", req.Description)
	}
	if req.Priority != 4 {
		t.Errorf("Expected priority clamped to 4, got %d", req.Priority)
	}
	if req.DueString != "2025-03-01" {
		t.Errorf("Expected due string, got %q", req.DueString)
	}
	if req.Duration != 30 || req.DurationUnit != "minute" {
		t.Errorf("Expected 30 minute duration, got %d %q", req.Duration, req.DurationUnit)
	}
	if req.Labels != nil {
		t.Errorf("Expected no labels, got %v", req.Labels)
	}

	req = Draft{Content: "x"}.Request(true)
	if req.Priority != 1 || req.Duration != 0 || req.DurationUnit != "" {
		t.Errorf("Expected defaults, got %+v", req)
	}
}

func TestValidate(t *testing.T) {
	if err := (Draft{Content: " \t"}).Validate(); err != ErrEmptyContent {
		t.Errorf("Expected ErrEmptyContent, got %v", err)
	}
	if err := (Draft{Content: "ok"}).Validate(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if !(Draft{Repeat: "every day"}).IsRepeating() {
		t.Error("Expected repeating draft")
	}
}
