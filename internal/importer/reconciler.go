package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/equipreg/internal/domain"
	"github.com/rpattn/equipreg/internal/repository"
)

// Reconciler applies a row to the controller table: it detects an existing
// record by tag, then by address, and dispatches on the duplicate handling
// policy. Policies are a closed set, so dispatch is a plain switch.
type Reconciler struct {
	policy domain.DuplicatePolicy
	userID string
}

// NewReconciler creates a reconciler for one import run.
func NewReconciler(policy domain.DuplicatePolicy, userID string) *Reconciler {
	return &Reconciler{policy: policy, userID: userID}
}

// Reconcile creates or reconciles the controller the row describes under the
// resolved equipment, and reports the row outcome.
func (r *Reconciler) Reconcile(ctx context.Context, store repository.Store, row domain.Row, equipment domain.Equipment) (domain.RowResult, error) {
	existing, found, err := r.findExisting(ctx, store, row)
	if err != nil {
		return domain.RowResult{}, err
	}

	if !found {
		controller := domain.NewController(equipment.ID, row.TagID, r.userID)
		controller.Description = row.Description
		controller.Make = row.Make
		controller.Model = row.Model
		controller.IPAddress = row.IPAddress
		controller.FirmwareVersion = row.FirmwareVersion
		if _, err := store.Controllers().Create(ctx, controller); err != nil {
			return domain.RowResult{}, fmt.Errorf("create controller %q: %w", row.TagID, err)
		}
		return domain.RowResult{
			Outcome: domain.RowCreated,
			Created: domain.CreatedEntities{Controllers: 1},
		}, nil
	}

	switch r.policy {
	case domain.DuplicateSkip:
		return domain.RowResult{Outcome: domain.RowSkipped}, nil

	case domain.DuplicateOverwrite:
		existing.Description = row.Description
		existing.Make = row.Make
		existing.Model = row.Model
		existing.IPAddress = row.IPAddress
		existing.FirmwareVersion = row.FirmwareVersion
		existing.UpdatedBy = r.userID
		if _, err := store.Controllers().Save(ctx, existing); err != nil {
			return domain.RowResult{}, fmt.Errorf("overwrite controller %q: %w", existing.TagID, err)
		}
		return domain.RowResult{Outcome: domain.RowUpdated}, nil

	case domain.DuplicateMerge:
		changed := false
		if existing.Description == "" && row.Description != "" {
			existing.Description = row.Description
			changed = true
		}
		if existing.Make == "" && row.Make != "" {
			existing.Make = row.Make
			changed = true
		}
		if existing.Model == "" && row.Model != "" {
			existing.Model = row.Model
			changed = true
		}
		if existing.IPAddress == "" && row.IPAddress != "" {
			existing.IPAddress = row.IPAddress
			changed = true
		}
		if existing.FirmwareVersion == "" && row.FirmwareVersion != "" {
			existing.FirmwareVersion = row.FirmwareVersion
			changed = true
		}
		if !changed {
			return domain.RowResult{Outcome: domain.RowSkipped}, nil
		}
		existing.UpdatedBy = r.userID
		if _, err := store.Controllers().Save(ctx, existing); err != nil {
			return domain.RowResult{}, fmt.Errorf("merge controller %q: %w", existing.TagID, err)
		}
		return domain.RowResult{Outcome: domain.RowUpdated}, nil

	default:
		return domain.RowResult{}, fmt.Errorf("unknown duplicate handling policy %q", r.policy)
	}
}

// findExisting looks up a controller first by tag, then by address when the
// row supplies one.
func (r *Reconciler) findExisting(ctx context.Context, store repository.Store, row domain.Row) (domain.Controller, bool, error) {
	controller, err := store.Controllers().GetByTagID(ctx, row.TagID)
	if err == nil {
		return controller, true, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.Controller{}, false, fmt.Errorf("look up controller by tag %q: %w", row.TagID, err)
	}

	if row.IPAddress == "" {
		return domain.Controller{}, false, nil
	}
	controller, err = store.Controllers().GetByIPAddress(ctx, row.IPAddress)
	if err == nil {
		return controller, true, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.Controller{}, false, fmt.Errorf("look up controller by address %q: %w", row.IPAddress, err)
	}
	return domain.Controller{}, false, nil
}
