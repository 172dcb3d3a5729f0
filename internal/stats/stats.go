// Package stats summarizes tasks over a range of days.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sandeepkv93/mellow/internal/model"
	"github.com/sandeepkv93/mellow/internal/snapshot"
)

var statusOrder = []model.Status{
	model.StatusNotStarted,
	model.StatusInProgress,
	model.StatusCompleted,
	model.StatusCancelled,
	model.StatusMeeting,
}

// Summary counts every task and subtask in the range once.
type Summary struct {
	From           model.Day
	To             model.Day
	Total          int
	ByStatus       map[model.Status]int
	CompletionRate float64
	Tracked        time.Duration
	Meetings       int
	BusiestDay     model.Day
	BusiestCount   int
	Days           []DaySummary
	Projects       []ProjectSummary
}

type DaySummary struct {
	Day       model.Day
	Total     int
	Completed int
}

type ProjectSummary struct {
	ID        string
	Name      string
	Total     int
	Completed int
	Tracked   time.Duration
}

// Summarize builds a Summary. Tasks outside [from, to] are ignored. The
// completion rate excludes meetings and cancelled work.
func Summarize(tasks []model.Task, from, to model.Day, projects []model.Project) Summary {
	out := Summary{From: from, To: to, ByStatus: make(map[model.Status]int, len(statusOrder))}
	names := make(map[string]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}

	days := make(map[model.Day]*DaySummary)
	byProject := make(map[string]*ProjectSummary)
	actionable := 0

	for _, task := range tasks {
		if task.Day < from || task.Day > to {
			continue
		}
		day := days[task.Day]
		if day == nil {
			day = &DaySummary{Day: task.Day}
			days[task.Day] = day
		}

		snapshot.Normalize([]model.Task{task}).Each(func(e snapshot.Entry) bool {
			t := e.Task
			out.Total++
			out.ByStatus[t.Status]++
			day.Total++

			switch t.Status {
			case model.StatusMeeting:
				out.Meetings++
			case model.StatusCancelled:
			default:
				actionable++
			}
			completed := t.IsCompleted()
			if completed {
				day.Completed++
			}
			out.Tracked += t.TrackedDuration()

			projectID := t.ProjectID
			if projectID == "" {
				projectID = task.ProjectID
			}
			if projectID != "" {
				ps := byProject[projectID]
				if ps == nil {
					name := names[projectID]
					if name == "" {
						name = projectID
					}
					ps = &ProjectSummary{ID: projectID, Name: name}
					byProject[projectID] = ps
				}
				ps.Total++
				if completed {
					ps.Completed++
				}
				ps.Tracked += t.TrackedDuration()
			}
			return true
		})
	}

	if actionable > 0 {
		out.CompletionRate = float64(out.ByStatus[model.StatusCompleted]) / float64(actionable)
	}

	out.Days = make([]DaySummary, 0, len(days))
	for _, d := range days {
		out.Days = append(out.Days, *d)
	}
	sort.Slice(out.Days, func(i, j int) bool { return out.Days[i].Day < out.Days[j].Day })
	for _, d := range out.Days {
		if d.Completed > out.BusiestCount {
			out.BusiestDay = d.Day
			out.BusiestCount = d.Completed
		}
	}

	out.Projects = make([]ProjectSummary, 0, len(byProject))
	for _, p := range byProject {
		out.Projects = append(out.Projects, *p)
	}
	sort.Slice(out.Projects, func(i, j int) bool {
		if out.Projects[i].Total == out.Projects[j].Total {
			return out.Projects[i].Name < out.Projects[j].Name
		}
		return out.Projects[i].Total > out.Projects[j].Total
	})
	return out
}

// Markdown renders the summary as a small report.
func (s Summary) Markdown() string {
	var b strings.Builder
	if s.From == s.To {
		fmt.Fprintf(&b, "# Stats for %s\n\n", s.From)
	} else {
		fmt.Fprintf(&b, "# Stats for %s to %s\n\n", s.From, s.To)
	}
	if s.Total == 0 {
		b.WriteString("_No tasks in range._\n")
		return b.String()
	}

	fmt.Fprintf(&b, "- **Tasks:** %d\n", s.Total)
	fmt.Fprintf(&b, "- **Completion rate:** %.0f%%\n", s.CompletionRate*100)
	fmt.Fprintf(&b, "- **Tracked time:** %s\n", formatDuration(s.Tracked))
	fmt.Fprintf(&b, "- **Meetings:** %d\n", s.Meetings)
	if s.BusiestCount > 0 {
		fmt.Fprintf(&b, "- **Busiest day:** %s (%d completed)\n", s.BusiestDay, s.BusiestCount)
	}

	b.WriteString("\n## By status\n\n| Status | Count |\n|---|---|\n")
	for _, st := range statusOrder {
		fmt.Fprintf(&b, "| %s | %d |\n", st, s.ByStatus[st])
	}

	if len(s.Days) > 1 {
		b.WriteString("\n## By day\n\n| Day | Tasks | Completed |\n|---|---|---|\n")
		for _, d := range s.Days {
			fmt.Fprintf(&b, "| %s | %d | %d |\n", d.Day, d.Total, d.Completed)
		}
	}

	if len(s.Projects) > 0 {
		b.WriteString("\n## By project\n\n| Project | Tasks | Completed | Tracked |\n|---|---|---|---|\n")
		for _, p := range s.Projects {
			fmt.Fprintf(&b, "| %s | %d | %d | %s |\n", p.Name, p.Total, p.Completed, formatDuration(p.Tracked))
		}
	}
	return b.String()
}

type yamlReport struct {
	From           string         `yaml:"from"`
	To             string         `yaml:"to"`
	Total          int            `yaml:"total"`
	ByStatus       map[string]int `yaml:"by_status"`
	CompletionRate float64        `yaml:"completion_rate"`
	Tracked        string         `yaml:"tracked"`
	Meetings       int            `yaml:"meetings"`
	BusiestDay     string         `yaml:"busiest_day,omitempty"`
	Days           []yamlDay      `yaml:"days,omitempty"`
	Projects       []yamlProject  `yaml:"projects,omitempty"`
}

type yamlDay struct {
	Day       string `yaml:"day"`
	Total     int    `yaml:"total"`
	Completed int    `yaml:"completed"`
}

type yamlProject struct {
	Name      string `yaml:"name"`
	Total     int    `yaml:"total"`
	Completed int    `yaml:"completed"`
	Tracked   string `yaml:"tracked"`
}

func (s Summary) YAML() ([]byte, error) {
	report := yamlReport{
		From:           string(s.From),
		To:             string(s.To),
		Total:          s.Total,
		ByStatus:       make(map[string]int, len(statusOrder)),
		CompletionRate: s.CompletionRate,
		Tracked:        s.Tracked.String(),
		Meetings:       s.Meetings,
		BusiestDay:     string(s.BusiestDay),
	}
	for _, st := range statusOrder {
		report.ByStatus[strings.ToLower(string(st))] = s.ByStatus[st]
	}
	for _, d := range s.Days {
		report.Days = append(report.Days, yamlDay{Day: string(d.Day), Total: d.Total, Completed: d.Completed})
	}
	for _, p := range s.Projects {
		report.Projects = append(report.Projects, yamlProject{Name: p.Name, Total: p.Total, Completed: p.Completed, Tracked: p.Tracked.String()})
	}
	out, err := yaml.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("stats: marshal yaml: %w", err)
	}
	return out, nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh%02dm", h, m)
	}
}
