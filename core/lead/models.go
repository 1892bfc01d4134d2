package lead

import (
	"time"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
)

// Priorities, in pipeline order.
const (
	PriorityCold    = "cold"
	PriorityWarm    = "warm"
	PriorityHot     = "hot"
	PriorityBooking = "booking"
	PriorityClosing = "closing"
	PriorityLost    = "lost"
)

// Sources
const (
	SourceWalkIn      = "walk_in"
	SourceWebsite     = "website"
	SourceSocialMedia = "social_media"
	SourceReferral    = "referral"
	SourceEvent       = "event"
	SourceCallIn      = "call_in"
	SourceOther       = "other"
)

var (
	AllPriorities = []string{PriorityCold, PriorityWarm, PriorityHot, PriorityBooking, PriorityClosing, PriorityLost}
	AllSources    = []string{SourceWalkIn, SourceWebsite, SourceSocialMedia, SourceReferral, SourceEvent, SourceCallIn, SourceOther}

	Priorities = []Choice{
		{Name: "Cold", Value: PriorityCold},
		{Name: "Warm", Value: PriorityWarm},
		{Name: "Hot", Value: PriorityHot},
		{Name: "Booking", Value: PriorityBooking},
		{Name: "Closing", Value: PriorityClosing},
		{Name: "Lost", Value: PriorityLost},
	}

	Sources = []Choice{
		{Name: "Walk In", Value: SourceWalkIn},
		{Name: "Website", Value: SourceWebsite},
		{Name: "Social Media", Value: SourceSocialMedia},
		{Name: "Referral", Value: SourceReferral},
		{Name: "Event", Value: SourceEvent},
		{Name: "Call In", Value: SourceCallIn},
		{Name: "Other", Value: SourceOther},
	}
)

// PriorityRank is the position of p in the pipeline, 1-based; 0 if unknown.
func PriorityRank(p string) int {
	for i, prio := range AllPriorities {
		if prio == p {
			return i + 1
		}
	}
	return 0
}

// PriorityName is the display name of p.
func PriorityName(p string) string {
	for _, c := range Priorities {
		if c.Value == p {
			return c.Name
		}
	}
	return p
}

type Choice struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Lead struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Phone             string    `json:"phone"`
	Email             string    `json:"email"`
	Source            string    `json:"source"`
	Priority          string    `json:"priority"`
	ProjectID         string    `json:"project_id"`
	UnitID            string    `json:"unit_id"`
	Notes             string    `json:"notes"`
	AssignedTo        string    `json:"assigned_to"`
	AssigneeName      string    `json:"assignee_name"`
	AssigneeManagerID string    `json:"-"`
	AssigneeSpvID     string    `json:"-"`
	ManagerID         string    `json:"manager_id"`
	SpvID             string    `json:"spv_id"`
	CreatedBy         string    `json:"created_by"`
	PriorityChangedAt time.Time `json:"priority_changed_at"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type PriorityHistory struct {
	ID           string    `json:"id"`
	LeadID       string    `json:"lead_id"`
	FromPriority string    `json:"from_priority"` // empty for the initial entry
	ToPriority   string    `json:"to_priority"`
	ChangedBy    string    `json:"changed_by"`
	Note         string    `json:"note"`
	ChangedAt    time.Time `json:"changed_at"`
}

type NewLead struct {
	Name       string `json:"name" validate:"required,max=150"`
	Phone      string `json:"phone" validate:"required,phone"`
	Email      string `json:"email" validate:"omitempty,email"`
	Source     string `json:"source" validate:"required,source"`
	Priority   string `json:"priority" validate:"omitempty,priority"`
	ProjectID  string `json:"project_id" validate:"omitempty,uuid"`
	UnitID     string `json:"unit_id" validate:"omitempty,uuid"`
	Notes      string `json:"notes"`
	AssignedTo string `json:"assigned_to" validate:"omitempty,uuid"`
}

func (nl *NewLead) Clean() {
	nl.Name = core.CleanString(nl.Name)
	nl.Phone = core.CleanString(nl.Phone)
	nl.Email = core.CleanString(nl.Email, true /* lower */)
	nl.Source = core.CleanString(nl.Source, true /* lower */)
	nl.Priority = core.CleanString(nl.Priority, true /* lower */)
	nl.ProjectID = core.CleanString(nl.ProjectID)
	nl.UnitID = core.CleanString(nl.UnitID)
	nl.Notes = core.CleanString(nl.Notes)
	nl.AssignedTo = core.CleanString(nl.AssignedTo)
	if nl.Priority == "" {
		nl.Priority = PriorityCold
	}
}

// UpdateLead defines what may be changed on a Lead. Empty strings and nil pointers leave fields untouched;
// pointers to "" clear them.
type UpdateLead struct {
	Name         string  `json:"name" validate:"max=150"`
	Phone        string  `json:"phone" validate:"omitempty,phone"`
	Email        *string `json:"email" validate:"omitempty,email_or_empty"`
	Source       string  `json:"source" validate:"omitempty,source"`
	Priority     string  `json:"priority" validate:"omitempty,priority"`
	PriorityNote string  `json:"priority_note" validate:"max=500"`
	ProjectID    *string `json:"project_id" validate:"omitempty,uuid_or_empty"`
	UnitID       *string `json:"unit_id" validate:"omitempty,uuid_or_empty"`
	Notes        *string `json:"notes"`
}

func (ul *UpdateLead) Clean() {
	ul.Name = core.CleanString(ul.Name)
	ul.Phone = core.CleanString(ul.Phone)
	ul.Source = core.CleanString(ul.Source, true /* lower */)
	ul.Priority = core.CleanString(ul.Priority, true /* lower */)
	ul.PriorityNote = core.CleanString(ul.PriorityNote)
	cleanPtr := func(s *string, lower bool) {
		if s != nil {
			*s = core.CleanString(*s, lower)
		}
	}
	cleanPtr(ul.Email, true)
	cleanPtr(ul.ProjectID, false)
	cleanPtr(ul.UnitID, false)
	cleanPtr(ul.Notes, false)
}

type QueryFilter struct {
	Search      string // name, phone or email
	Priorities  []string
	Source      string
	ProjectID   string
	AssignedTo  string
	Unassigned  bool
	CreatedFrom time.Time
	CreatedTo   time.Time
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Source = core.CleanString(qf.Source, true /* lower */)
	qf.ProjectID = core.CleanString(qf.ProjectID)
	qf.AssignedTo = core.CleanString(qf.AssignedTo)
}

type HistoryFilter struct {
	LeadID      string
	ChangedFrom time.Time
	ChangedTo   time.Time
	ProjectID   string
}
