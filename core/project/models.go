package project

import (
	"time"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
)

// Unit statuses
const (
	UnitAvailable = "available"
	UnitBooked    = "booked"
	UnitSold      = "sold"
)

var UnitStatuses = []string{UnitAvailable, UnitBooked, UnitSold}

type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Unit struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	Code           string    `json:"code"`
	UnitType       string    `json:"unit_type"`
	Floor          int       `json:"floor"`
	Area           float64   `json:"area"`  // m2
	Price          int64     `json:"price"` // IDR
	Status         string    `json:"status"`
	BookedByLeadID string    `json:"booked_by_lead_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type NewProject struct {
	Name        string `json:"name" validate:"required,max=150"`
	Location    string `json:"location" validate:"max=255"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

func (np *NewProject) Clean() {
	np.Name = core.CleanString(np.Name)
	np.Location = core.CleanString(np.Location)
	np.Description = core.CleanString(np.Description)
}

type UpdateProject struct {
	Name        string  `json:"name" validate:"max=150"`
	Location    *string `json:"location" validate:"omitempty,max=255"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

func (up *UpdateProject) Clean() {
	up.Name = core.CleanString(up.Name)
}

type NewUnit struct {
	Code     string  `json:"code" validate:"required,max=50"`
	UnitType string  `json:"unit_type" validate:"max=50"`
	Floor    int     `json:"floor" validate:"gte=0"`
	Area     float64 `json:"area" validate:"gte=0"`
	Price    int64   `json:"price" validate:"gte=0"`
}

func (nu *NewUnit) Clean() {
	nu.Code = core.CleanString(nu.Code)
	nu.UnitType = core.CleanString(nu.UnitType)
}

type UpdateUnit struct {
	Code     string   `json:"code" validate:"max=50"`
	UnitType *string  `json:"unit_type" validate:"omitempty,max=50"`
	Floor    *int     `json:"floor" validate:"omitempty,gte=0"`
	Area     *float64 `json:"area" validate:"omitempty,gte=0"`
	Price    *int64   `json:"price" validate:"omitempty,gte=0"`
	Status   string   `json:"status" validate:"omitempty,unitstatus"`
}

func (uu *UpdateUnit) Clean() {
	uu.Code = core.CleanString(uu.Code)
	uu.Status = core.CleanString(uu.Status, true /* lower */)
}

type QueryFilter struct {
	Search   string
	IsActive *bool
}

type UnitFilter struct {
	ProjectID string
	Statuses  []string
	UnitType  string
	MinPrice  int64
	MaxPrice  int64
	Search    string // on code
}
