package tasklines

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/harrisonrobin/notedo/pkg/todoist"
)

const (
	SingleTag = "#tasktodo"
	RepeatTag = "#repeattodo"

	defaultLabelColor = "#808080"
)

// Variant selects the trailing tag of a rendered line.
type Variant int

const (
	Single Variant = iota
	Repeating
)

func (v Variant) Tag() string {
	if v == Repeating {
		return RepeatTag
	}
	return SingleTag
}

// Ref is what a recognized task line points at.
type Ref struct {
	TaskID    string
	Completed bool
}

var (
	checkboxRegex = regexp.MustCompile(`- \[([ x])\]`)
	taskRegex     = regexp.MustCompile(`- \[([ x])\].*` + SingleTag)
	taskIDRegex   = regexp.MustCompile(`todoist\.com/(?:app/)?(?:task/)?(\d+)`)
)

// Codec renders task lines. LabelColor may be nil.
type Codec struct {
	LabelColor func(name string) string
}

// Render fills the template with the task fields. Each placeholder is
// replaced at its first occurrence only. The variant tag is appended when
// the result does not already contain it.
func (c Codec) Render(task *todoist.Task, template string, variant Variant) string {
	text := template
	text = strings.Replace(text, "{{content}}", task.Content, 1)
	text = strings.Replace(text, "{{url}}", task.URL, 1)
	text = strings.Replace(text, "{{id}}", task.ID, 1)
	text = strings.Replace(text, "{{priority}}", priorityHTML(task.Priority), 1)
	text = strings.Replace(text, "{{labels}}", c.labelsHTML(task.Labels), 1)
	text = strings.Replace(text, "{{due}}", dueHTML(task.Due), 1)
	text = strings.Replace(text, "{{description}}", descriptionHTML(task.Description), 1)

	tag := variant.Tag()
	if !strings.Contains(text, tag) {
		text = text + " " + tag
	}
	return text
}

// Render uses a Codec without label colours.
func Render(task *todoist.Task, template string, variant Variant) string {
	return Codec{}.Render(task, template, variant)
}

// Recognize matches a single-task line: a checkbox, the #tasktodo tag and a
// todoist.com task link.
func Recognize(line string) (Ref, bool) {
	m := taskRegex.FindStringSubmatch(line)
	if m == nil {
		return Ref{}, false
	}
	id := taskIDRegex.FindStringSubmatch(line)
	if id == nil {
		return Ref{}, false
	}
	return Ref{TaskID: id[1], Completed: m[1] != " "}, true
}

// HasTag reports whether the line carries the single-task tag.
func HasTag(line string) bool {
	return strings.Contains(line, SingleTag)
}

// IsChecked reports whether the first checkbox on the line is ticked.
func IsChecked(line string) bool {
	m := checkboxRegex.FindStringSubmatch(line)
	return m != nil && m[1] != " "
}

// SetChecked rewrites only the glyph of the first checkbox. Lines without a
// checkbox come back unchanged.
func SetChecked(line string, checked bool) string {
	loc := checkboxRegex.FindStringSubmatchIndex(line)
	if loc == nil {
		return line
	}
	glyph := " "
	if checked {
		glyph = "x"
	}
	return line[:loc[2]] + glyph + line[loc[3]:]
}

// PriorityText maps API priority (4 = urgent) to the P1..P4 labels users see.
func PriorityText(priority int) string {
	switch priority {
	case 4:
		return "P1"
	case 3:
		return "P2"
	case 2:
		return "P3"
	default:
		return "P4"
	}
}

func priorityHTML(priority int) string {
	text := PriorityText(priority)
	return fmt.Sprintf(`<span class="todoist-priority-%s">%s</span>`, strings.ToLower(text), text)
}

func (c Codec) labelsHTML(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		color := ""
		if c.LabelColor != nil {
			color = c.LabelColor(label)
		}
		if color == "" {
			color = defaultLabelColor
		}
		parts = append(parts, fmt.Sprintf(
			`<span class="todoist-label" style="background-color: %s20; border-color: %s; color: var(--text-normal);">%s</span>`,
			color, color, label))
	}
	return strings.Join(parts, " ")
}

func dueHTML(due *todoist.Due) string {
	if due == nil {
		return ""
	}
	return fmt.Sprintf(`<span class="todoist-due">%s</span>`, due.String)
}

func descriptionHTML(description string) string {
	if description == "" {
		return ""
	}
	return fmt.Sprintf(`<span class="todoist-description">%s</span>`, description)
}
