package services

import (
	"fmt"
	"time"

	"github.com/sekikawa/project-management-api/internal/models"
)

// fieldChange records one tracked field's transition.
type fieldChange struct {
	field    string
	previous any
	next     any
}

// changeSet accumulates the field-level diff of one mutation, restricted to
// the tracked allow-list. Fields submitted with their current value are
// excluded.
type changeSet struct {
	changes []fieldChange
}

func (cs *changeSet) record(field string, previous, next any) {
	cs.changes = append(cs.changes, fieldChange{field: field, previous: previous, next: next})
}

func (cs *changeSet) empty() bool {
	return len(cs.changes) == 0
}

func (cs *changeSet) fields() models.StringList {
	out := make(models.StringList, len(cs.changes))
	for i, ch := range cs.changes {
		out[i] = ch.field
	}
	return out
}

func (cs *changeSet) previousValues() models.JSONMap {
	out := make(models.JSONMap, len(cs.changes))
	for _, ch := range cs.changes {
		out[ch.field] = stringify(ch.previous)
	}
	return out
}

func (cs *changeSet) newValues() models.JSONMap {
	out := make(models.JSONMap, len(cs.changes))
	for _, ch := range cs.changes {
		out[ch.field] = stringify(ch.next)
	}
	return out
}

func stringify(v any) any {
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.Format("2006-01-02")
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", t)
	}
}

// captureProjectChanges diffs the submitted update against the loaded
// project over the tracked field allow-list.
func captureProjectChanges(project *models.Project, in UpdateProjectInput) *changeSet {
	cs := &changeSet{}

	if in.Title != nil && *in.Title != project.Title {
		cs.record("title", project.Title, *in.Title)
	}
	if in.Description != nil && *in.Description != project.Description {
		cs.record("description", project.Description, *in.Description)
	}
	if in.Status != nil && *in.Status != project.Status {
		cs.record("status", project.Status, *in.Status)
	}
	if in.Health != nil && *in.Health != project.Health {
		cs.record("health", project.Health, *in.Health)
	}
	if in.Progress != nil && *in.Progress != project.Progress {
		cs.record("progress", project.Progress, *in.Progress)
	}
	if in.StartDate != nil && !equalDate(project.StartDate, in.StartDate) {
		cs.record("start_date", project.StartDate, in.StartDate)
	}
	if in.EndDate != nil && !equalDate(project.EndDate, in.EndDate) {
		cs.record("end_date", project.EndDate, in.EndDate)
	}

	return cs
}

func equalDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
