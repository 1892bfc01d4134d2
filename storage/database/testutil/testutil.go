// Package testutil provides a fresh, migrated database for tests along with fixture helpers.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/lead"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/project"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/user"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/storage/database"
)

// PrepareDB opens a migrated in-memory database, closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Open(core.NewTestConfig())
	if err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	return db
}

// UserOpts holds the optional fields of a fixture user.
type UserOpts struct {
	Password  string
	ManagerID string
	SpvID     string
	Inactive  bool
	CreatedAt time.Time
}

func CreateUser(t *testing.T, repo user.Repository, name, uname, email, role string, opts ...UserOpts) user.User {
	t.Helper()
	var opt UserOpts
	if len(opts) > 0 {
		opt = opts[0]
	}
	tstamp := core.Now()
	if !opt.CreatedAt.IsZero() {
		tstamp = opt.CreatedAt.UTC().Truncate(time.Microsecond)
	}

	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		ManagerID: opt.ManagerID,
		SpvID:     opt.SpvID,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(!opt.Inactive)
	if opt.Password != "" {
		if err := usr.SetPassword(opt.Password); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

func CreateProject(t *testing.T, repo project.Repository, name string) project.Project {
	t.Helper()
	now := core.Now()
	p, err := repo.CreateProject(context.Background(), project.Project{
		Name:      name,
		Location:  "Bogor",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateProject(): %v", err)
	}
	return p
}

func CreateUnit(t *testing.T, repo project.Repository, projectID, code string, price int64) project.Unit {
	t.Helper()
	now := core.Now()
	u, err := repo.CreateUnit(context.Background(), project.Unit{
		ProjectID: projectID,
		Code:      code,
		UnitType:  "36/72",
		Floor:     1,
		Area:      72,
		Price:     price,
		Status:    project.UnitAvailable,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateUnit(): %v", err)
	}
	return u
}

// CreateLead inserts l as is (no pipeline rules), defaulting the required fields.
func CreateLead(t *testing.T, repo lead.Repository, l lead.Lead) lead.Lead {
	t.Helper()
	if l.Phone == "" {
		l.Phone = "+62 812 3456 7890"
	}
	if l.Source == "" {
		l.Source = lead.SourceWalkIn
	}
	if l.Priority == "" {
		l.Priority = lead.PriorityCold
	}
	now := core.Now()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.CreatedAt = l.CreatedAt.UTC().Truncate(time.Microsecond)
	l.UpdatedAt = l.CreatedAt
	l.PriorityChangedAt = l.CreatedAt

	l, err := repo.CreateLead(context.Background(), l)
	if err != nil {
		t.Fatalf("CreateLead(): %v", err)
	}
	l, err = repo.GetLead(context.Background(), l.ID)
	if err != nil {
		t.Fatalf("CreateLead(): %v", err)
	}
	return l
}
