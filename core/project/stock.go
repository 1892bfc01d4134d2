package project

import (
	"context"

	"github.com/pkg/errors"

	"github.com/AnggaNaa/CRM-Citanusa-sub001/core"
)

// BookUnit books the unit for the lead. The unit must be available or already booked by that lead.
func BookUnit(ctx context.Context, repo Repository, unitID, leadID string, exec core.DBExecutor) error {
	return holdUnit(ctx, repo, unitID, leadID, UnitBooked, exec)
}

// SellUnit marks the unit sold to the lead. The unit must be available or booked by that lead.
func SellUnit(ctx context.Context, repo Repository, unitID, leadID string, exec core.DBExecutor) error {
	return holdUnit(ctx, repo, unitID, leadID, UnitSold, exec)
}

// ReleaseUnit puts a unit booked by the lead back on sale; other units are left alone.
func ReleaseUnit(ctx context.Context, repo Repository, unitID, leadID string, exec core.DBExecutor) error {
	_, err := repo.ReleaseUnit(ctx, unitID, leadID, exec)
	return errors.Wrap(err, "releasing unit")
}

// holdUnit claims the unit in one conditional write, so a concurrent claim by
// another lead makes it fail instead of overwriting the holder.
func holdUnit(ctx context.Context, repo Repository, unitID, leadID, status string, exec core.DBExecutor) error {
	ok, err := repo.HoldUnit(ctx, unitID, status, leadID, exec)
	if err != nil {
		return errors.Wrap(err, "holding unit")
	}
	if ok {
		return nil
	}
	if _, err = repo.GetUnit(ctx, unitID, exec); err != nil {
		if errors.Cause(err) == ErrUnitNotFound {
			return core.NewFieldError("unit_id", ErrUnitNotFound.Error())
		}
		return errors.Wrap(err, "finding unit")
	}
	return core.NewFieldError("unit_id", ErrUnitUnavailable.Error())
}
