package project_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/core/project"
	sqlxrepos "github.com/AnggaNaa/CRM-Citanusa-sub001/storage/database/sqlx"
	"github.com/AnggaNaa/CRM-Citanusa-sub001/storage/database/testutil"
)

const (
	leadA = "0f6d2c4e-1a3b-4c5d-8e9f-0a1b2c3d4e5f"
	leadB = "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d"
)

func TestStock(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewProjectRepository(db)
	ctx := context.Background()

	proj := testutil.CreateProject(t, repo, "Citanusa Residence")
	unit := testutil.CreateUnit(t, repo, proj.ID, "A-01", 450_000_000)

	check := func(t *testing.T, status, by string) {
		t.Helper()
		u, err := repo.GetUnit(ctx, unit.ID)
		require.NoError(t, err)
		assert.Equal(t, status, u.Status)
		assert.Equal(t, by, u.BookedByLeadID)
	}
	unavailable := func(t *testing.T, err error) {
		t.Helper()
		verr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok, "want a validation error, got %v", err)
		assert.Equal(t, []core.FieldError{{Field: "unit_id", Error: project.ErrUnitUnavailable.Error()}}, verr.Fields)
	}

	steps := []struct {
		name       string
		run        func() error
		wantErr    bool
		wantStatus string
		wantBy     string
	}{
		{name: "book", run: func() error { return project.BookUnit(ctx, repo, unit.ID, leadA, db) },
			wantStatus: project.UnitBooked, wantBy: leadA},
		{name: "book again by the same lead", run: func() error { return project.BookUnit(ctx, repo, unit.ID, leadA, db) },
			wantStatus: project.UnitBooked, wantBy: leadA},
		{name: "book by another lead", run: func() error { return project.BookUnit(ctx, repo, unit.ID, leadB, db) },
			wantErr: true, wantStatus: project.UnitBooked, wantBy: leadA},
		{name: "release by another lead is ignored", run: func() error { return project.ReleaseUnit(ctx, repo, unit.ID, leadB, db) },
			wantStatus: project.UnitBooked, wantBy: leadA},
		{name: "release", run: func() error { return project.ReleaseUnit(ctx, repo, unit.ID, leadA, db) },
			wantStatus: project.UnitAvailable},
		{name: "sell straight away", run: func() error { return project.SellUnit(ctx, repo, unit.ID, leadB, db) },
			wantStatus: project.UnitSold, wantBy: leadB},
		{name: "release a sold unit is ignored", run: func() error { return project.ReleaseUnit(ctx, repo, unit.ID, leadB, db) },
			wantStatus: project.UnitSold, wantBy: leadB},
		{name: "book a sold unit", run: func() error { return project.BookUnit(ctx, repo, unit.ID, leadB, db) },
			wantErr: true, wantStatus: project.UnitSold, wantBy: leadB},
		{name: "release an unknown unit", run: func() error { return project.ReleaseUnit(ctx, repo, leadA, leadA, db) },
			wantStatus: project.UnitSold, wantBy: leadB},
	}
	for _, st := range steps {
		t.Run(st.name, func(t *testing.T) {
			err := st.run()
			if st.wantErr {
				unavailable(t, err)
			} else {
				require.NoError(t, err)
			}
			check(t, st.wantStatus, st.wantBy)
		})
	}

	t.Run("book an unknown unit", func(t *testing.T) {
		err := project.BookUnit(ctx, repo, leadA, leadA, db)
		verr, ok := errors.Cause(err).(*core.ValidationError)
		require.True(t, ok)
		assert.Equal(t, project.ErrUnitNotFound.Error(), verr.Fields[0].Error)
	})
}

func TestStock_concurrentClaims(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewProjectRepository(db)
	ctx := context.Background()

	proj := testutil.CreateProject(t, repo, "Citanusa Hills")
	unit := testutil.CreateUnit(t, repo, proj.ID, "H-01", 1_200_000_000)

	// both leads read the unit while it is still available
	stale, err := repo.GetUnit(ctx, unit.ID)
	require.NoError(t, err)
	require.Equal(t, project.UnitAvailable, stale.Status)

	require.NoError(t, project.BookUnit(ctx, repo, unit.ID, leadA, db))

	tests := []struct {
		name string
		run  func() (bool, error)
	}{
		{name: "hold by another lead", run: func() (bool, error) {
			return repo.HoldUnit(ctx, unit.ID, project.UnitSold, leadB)
		}},
		{name: "release by another lead", run: func() (bool, error) {
			return repo.ReleaseUnit(ctx, unit.ID, leadB)
		}},
		{name: "manual status change", run: func() (bool, error) {
			return repo.SetUnitStatus(ctx, unit.ID, project.UnitAvailable)
		}},
		{name: "write back the stale copy", run: func() (bool, error) {
			stale.Price = 1_250_000_000
			_, err := repo.UpdateUnit(ctx, stale)
			return false, err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := tt.run()
			require.NoError(t, err)
			assert.False(t, ok)

			u, err := repo.GetUnit(ctx, unit.ID)
			require.NoError(t, err)
			assert.Equal(t, project.UnitBooked, u.Status)
			assert.Equal(t, leadA, u.BookedByLeadID)
		})
	}

	u, err := repo.GetUnit(ctx, unit.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1_250_000_000), u.Price)
}
