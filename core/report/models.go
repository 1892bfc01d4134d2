package report

import (
	"time"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/lead"
)

type Filter struct {
	ProjectID   string
	Source      string
	CreatedFrom time.Time
	CreatedTo   time.Time
}

func (f *Filter) Clean() {
	f.ProjectID = core.CleanString(f.ProjectID)
	f.Source = core.CleanString(f.Source, true /* lower */)
}

type PipelineStage struct {
	Priority string `json:"priority"`
	Name     string `json:"name"`
	Count    int    `json:"count"`
}

type Pipeline struct {
	Stages []PipelineStage `json:"stages"` // in pipeline order, one per priority
	Total  int             `json:"total"`
}

// Count returns the number of leads at priority p.
func (p Pipeline) Count(priority string) int {
	for _, s := range p.Stages {
		if s.Priority == priority {
			return s.Count
		}
	}
	return 0
}

type AdvisorStats struct {
	UserID      string         `json:"user_id"`
	Name        string         `json:"name"`
	ManagerID   string         `json:"manager_id"`
	SpvID       string         `json:"spv_id"`
	Total       int            `json:"total"`
	ByPriority  map[string]int `json:"by_priority"`
	ClosingRate float64        `json:"closing_rate"` // closing / total
}

// AdvisorCount is the number of visible leads at one priority assigned to one HA.
type AdvisorCount struct {
	UserID   string
	Priority string
	Count    int
}

type PriorityChange struct {
	lead.PriorityHistory
	LeadName      string `json:"lead_name"`
	ChangedByName string `json:"changed_by_name"`
}

// LeadRow is one lead of an export.
type LeadRow struct {
	lead.Lead
	ProjectName string
	UnitCode    string
}

// ExportFilter narrows a leads export; the zero value exports every visible lead.
type ExportFilter struct {
	Leads    lead.QueryFilter
	Ordering []core.DBOrdering
}
