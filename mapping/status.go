// ABOUTME: Static status vocabularies for each entity on both sides of the sync
// ABOUTME: The first pair in each table is the default for empty values
package mapping

import (
	"strings"

	"github.com/harperreed/crmbridge/models"
)

// statusPair maps one primary status to its partner equivalent.
type statusPair struct {
	primary string
	partner string
}

var contactStatuses = []statusPair{
	{models.ContactStatusActive, "active"},
	{models.ContactStatusInactive, "archived"},
	{models.ContactStatusLead, "prospect"},
}

var projectStatuses = []statusPair{
	{models.ProjectStatusPlanning, "draft"},
	{models.ProjectStatusActive, "open"},
	{models.ProjectStatusOnHold, "paused"},
	{models.ProjectStatusCompleted, "closed"},
}

var caseStatuses = []statusPair{
	{models.CaseStatusOpen, "new"},
	{models.CaseStatusInProgress, "working"},
	{models.CaseStatusResolved, "closed"},
}

var taskStatuses = []statusPair{
	{models.TaskStatusTodo, "pending"},
	{models.TaskStatusInProgress, "started"},
	{models.TaskStatusDone, "complete"},
}

var activityStatuses = []statusPair{
	{models.ActivityStatusScheduled, "planned"},
	{models.ActivityStatusCompleted, "done"},
	{models.ActivityStatusCancelled, "cancelled"},
}

// translateStatus maps status through table. toPartner selects the direction.
// Unknown values pass through lower-cased.
func translateStatus(table []statusPair, status string, toPartner bool) string {
	s := strings.ToLower(strings.TrimSpace(status))
	if s == "" {
		if toPartner {
			return table[0].partner
		}
		return table[0].primary
	}
	for _, p := range table {
		if toPartner && p.primary == s {
			return p.partner
		}
		if !toPartner && p.partner == s {
			return p.primary
		}
	}
	return s
}
