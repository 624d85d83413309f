package importer

import (
	"context"

	"github.com/google/uuid"

	"github.com/rpattn/equipreg/internal/domain"
	"github.com/rpattn/equipreg/internal/repository"
)

// memoryStore backs the repository interfaces with maps so orchestration
// logic can be exercised without a database.
type memoryStore struct {
	sites       map[string]domain.Site
	cells       map[cellKey]domain.Cell
	equipment   map[equipmentKey]domain.Equipment
	controllers map[string]domain.Controller

	siteCreates       int
	cellCreates       int
	equipmentCreates  int
	controllerCreates int
	controllerSaves   int

	controllerCreateErr error
}

var _ repository.Store = (*memoryStore)(nil)

func newMemoryStore() *memoryStore {
	return &memoryStore{
		sites:       make(map[string]domain.Site),
		cells:       make(map[cellKey]domain.Cell),
		equipment:   make(map[equipmentKey]domain.Equipment),
		controllers: make(map[string]domain.Controller),
	}
}

func (m *memoryStore) clone() *memoryStore {
	out := newMemoryStore()
	*out = *m
	out.sites = make(map[string]domain.Site, len(m.sites))
	for k, v := range m.sites {
		out.sites[k] = v
	}
	out.cells = make(map[cellKey]domain.Cell, len(m.cells))
	for k, v := range m.cells {
		out.cells[k] = v
	}
	out.equipment = make(map[equipmentKey]domain.Equipment, len(m.equipment))
	for k, v := range m.equipment {
		out.equipment[k] = v
	}
	out.controllers = make(map[string]domain.Controller, len(m.controllers))
	for k, v := range m.controllers {
		out.controllers[k] = v
	}
	return out
}

func (m *memoryStore) restore(snapshot *memoryStore) {
	*m = *snapshot
}

func (m *memoryStore) Sites() repository.SiteRepository             { return &memorySites{m} }
func (m *memoryStore) Cells() repository.CellRepository             { return &memoryCells{m} }
func (m *memoryStore) Equipment() repository.EquipmentRepository    { return &memoryEquipment{m} }
func (m *memoryStore) Controllers() repository.ControllerRepository { return &memoryControllers{m} }

type memorySites struct{ store *memoryStore }

func (r *memorySites) GetByName(_ context.Context, name string) (domain.Site, error) {
	site, ok := r.store.sites[name]
	if !ok {
		return domain.Site{}, repository.ErrNotFound
	}
	return site, nil
}

func (r *memorySites) Create(_ context.Context, site domain.Site) (domain.Site, error) {
	r.store.sites[site.Name] = site
	r.store.siteCreates++
	return site, nil
}

type memoryCells struct{ store *memoryStore }

func (r *memoryCells) GetBySiteAndLine(_ context.Context, siteID uuid.UUID, lineNumber int) (domain.Cell, error) {
	cell, ok := r.store.cells[cellKey{siteID: siteID, lineNumber: lineNumber}]
	if !ok {
		return domain.Cell{}, repository.ErrNotFound
	}
	return cell, nil
}

func (r *memoryCells) Create(_ context.Context, cell domain.Cell) (domain.Cell, error) {
	r.store.cells[cellKey{siteID: cell.SiteID, lineNumber: cell.LineNumber}] = cell
	r.store.cellCreates++
	return cell, nil
}

type memoryEquipment struct{ store *memoryStore }

func (r *memoryEquipment) GetByCellAndName(_ context.Context, cellID uuid.UUID, name string) (domain.Equipment, error) {
	equipment, ok := r.store.equipment[equipmentKey{cellID: cellID, name: name}]
	if !ok {
		return domain.Equipment{}, repository.ErrNotFound
	}
	return equipment, nil
}

func (r *memoryEquipment) Create(_ context.Context, equipment domain.Equipment) (domain.Equipment, error) {
	r.store.equipment[equipmentKey{cellID: equipment.CellID, name: equipment.Name}] = equipment
	r.store.equipmentCreates++
	return equipment, nil
}

type memoryControllers struct{ store *memoryStore }

func (r *memoryControllers) GetByTagID(_ context.Context, tagID string) (domain.Controller, error) {
	controller, ok := r.store.controllers[tagID]
	if !ok {
		return domain.Controller{}, repository.ErrNotFound
	}
	return controller, nil
}

func (r *memoryControllers) GetByIPAddress(_ context.Context, ipAddress string) (domain.Controller, error) {
	for _, controller := range r.store.controllers {
		if controller.IPAddress == ipAddress {
			return controller, nil
		}
	}
	return domain.Controller{}, repository.ErrNotFound
}

func (r *memoryControllers) Create(_ context.Context, controller domain.Controller) (domain.Controller, error) {
	if r.store.controllerCreateErr != nil {
		return domain.Controller{}, r.store.controllerCreateErr
	}
	r.store.controllers[controller.TagID] = controller
	r.store.controllerCreates++
	return controller, nil
}

func (r *memoryControllers) Save(_ context.Context, controller domain.Controller) (domain.Controller, error) {
	r.store.controllers[controller.TagID] = controller
	r.store.controllerSaves++
	return controller, nil
}

func (r *memoryControllers) ListForExport(_ context.Context, _ domain.ControllerFilter, _ int) ([]domain.ExportRow, error) {
	return nil, nil
}

// memoryTx implements savepoints by snapshotting the whole store.
type memoryTx struct{ *memoryStore }

var _ repository.Tx = (*memoryTx)(nil)

func (t *memoryTx) Savepoint(_ context.Context, fn func(repository.Store) error) error {
	snapshot := t.memoryStore.clone()
	if err := fn(t.memoryStore); err != nil {
		t.memoryStore.restore(snapshot)
		return err
	}
	return nil
}

type memoryUnitOfWork struct {
	store      *memoryStore
	rolledBack bool
}

var _ repository.UnitOfWork = (*memoryUnitOfWork)(nil)

func newMemoryUnitOfWork(store *memoryStore) *memoryUnitOfWork {
	return &memoryUnitOfWork{store: store}
}

func (u *memoryUnitOfWork) Store() repository.Store { return u.store }

func (u *memoryUnitOfWork) WithTx(ctx context.Context, fn func(repository.Tx) error) error {
	snapshot := u.store.clone()
	if err := fn(&memoryTx{u.store}); err != nil {
		u.store.restore(snapshot)
		u.rolledBack = true
		return err
	}
	return nil
}

// stubRunRepo records ledger transitions in memory.
type stubRunRepo struct {
	runs       map[uuid.UUID]domain.ImportRun
	order      []uuid.UUID
	processing []uuid.UUID
	completed  map[uuid.UUID]repository.ImportRunResult
	failed     map[uuid.UUID]string
}

var _ repository.ImportRunRepository = (*stubRunRepo)(nil)

func newStubRunRepo() *stubRunRepo {
	return &stubRunRepo{
		runs:      make(map[uuid.UUID]domain.ImportRun),
		completed: make(map[uuid.UUID]repository.ImportRunResult),
		failed:    make(map[uuid.UUID]string),
	}
}

func (r *stubRunRepo) Create(_ context.Context, run domain.ImportRun) (domain.ImportRun, error) {
	r.runs[run.ID] = run
	r.order = append(r.order, run.ID)
	return run, nil
}

func (r *stubRunRepo) GetByID(_ context.Context, id uuid.UUID) (domain.ImportRun, error) {
	run, ok := r.runs[id]
	if !ok {
		return domain.ImportRun{}, repository.ErrNotFound
	}
	return run, nil
}

func (r *stubRunRepo) List(_ context.Context, _, _ int) ([]domain.ImportRun, error) {
	runs := make([]domain.ImportRun, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		runs = append(runs, r.runs[r.order[i]])
	}
	return runs, nil
}

func (r *stubRunRepo) MarkProcessing(_ context.Context, id uuid.UUID) error {
	run := r.runs[id]
	run.Status = domain.ImportRunStatusProcessing
	r.runs[id] = run
	r.processing = append(r.processing, id)
	return nil
}

func (r *stubRunRepo) MarkCompleted(_ context.Context, id uuid.UUID, result repository.ImportRunResult) error {
	run := r.runs[id]
	run.Status = domain.ImportRunStatusCompleted
	r.runs[id] = run
	r.completed[id] = result
	return nil
}

func (r *stubRunRepo) MarkFailed(_ context.Context, id uuid.UUID, message string) error {
	run := r.runs[id]
	run.Status = domain.ImportRunStatusFailed
	r.runs[id] = run
	r.failed[id] = message
	return nil
}
