package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/model"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/repository"
	pkgerrors "github.com/CristhianMorales19/sistema-gestion-agricola-sub003/pkg/errors"
)

// ── Mock AttendanceRepository ──

type mockAttendanceRepo struct {
	mu      sync.Mutex
	records []*model.AttendanceRecord
	workers map[int64]*model.Worker
	nextID  int64

	closeCalls int
	// errores inyectados
	createErr error
	listErr   error
}

func newMockAttendanceRepo(workers map[int64]*model.Worker) *mockAttendanceRepo {
	return &mockAttendanceRepo{workers: workers, nextID: 1}
}

func (m *mockAttendanceRepo) ExistsByWorkerAndDate(_ context.Context, workerID int64, date time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.find(workerID, date) != nil, nil
}

func (m *mockAttendanceRepo) CreateEntry(_ context.Context, rec *model.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if m.find(rec.WorkerID, rec.Date) != nil {
		return pkgerrors.ErrDuplicateKey
	}
	rec.AttendanceID = m.nextID
	m.nextID++
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().Add(time.Duration(rec.AttendanceID) * time.Millisecond)
	}
	cp := *rec
	m.records = append(m.records, &cp)
	return nil
}

func (m *mockAttendanceRepo) FindOpenByWorkerAndDate(_ context.Context, workerID int64, date time.Time) (*model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r := m.find(workerID, date); r != nil && r.ExitTime == nil {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAttendanceRepo) CloseEntry(_ context.Context, rec *model.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	for _, r := range m.records {
		if r.AttendanceID == rec.AttendanceID {
			if r.ExitTime != nil {
				return pkgerrors.ErrOptimisticLock
			}
			r.ExitTime = rec.ExitTime
			r.WorkedHours = rec.WorkedHours
			r.Observation = rec.Observation
			r.Status = rec.Status
			r.UpdatedBy = rec.UpdatedBy
			return nil
		}
	}
	return pkgerrors.ErrOptimisticLock
}

func (m *mockAttendanceRepo) ListByDate(_ context.Context, date time.Time, limit int) ([]model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	result := m.filter(func(r *model.AttendanceRecord) bool { return r.Date.Equal(date) })
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return capAt(result, limit), nil
}

func (m *mockAttendanceRepo) ListOpenByDate(_ context.Context, date time.Time, limit int) ([]model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	result := m.filter(func(r *model.AttendanceRecord) bool { return r.Date.Equal(date) && r.ExitTime == nil })
	sort.Slice(result, func(i, j int) bool { return result[i].EntryTime.Before(result[j].EntryTime) })
	return capAt(result, limit), nil
}

func (m *mockAttendanceRepo) ListByWorker(_ context.Context, workerID int64, from, to *time.Time, offset, limit int) ([]model.AttendanceRecord, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := m.filter(func(r *model.AttendanceRecord) bool {
		if r.WorkerID != workerID {
			return false
		}
		if from != nil && r.Date.Before(*from) {
			return false
		}
		if to != nil && r.Date.After(*to) {
			return false
		}
		return true
	})
	sort.Slice(result, func(i, j int) bool { return result[i].Date.After(result[j].Date) })
	total := int64(len(result))
	if offset >= len(result) {
		return []model.AttendanceRecord{}, total, nil
	}
	return capAt(result[offset:], limit), total, nil
}

func (m *mockAttendanceRepo) find(workerID int64, date time.Time) *model.AttendanceRecord {
	for _, r := range m.records {
		if r.WorkerID == workerID && r.Date.Equal(date) {
			return r
		}
	}
	return nil
}

func (m *mockAttendanceRepo) filter(keep func(*model.AttendanceRecord) bool) []model.AttendanceRecord {
	var result []model.AttendanceRecord
	for _, r := range m.records {
		if keep(r) {
			cp := *r
			cp.Worker = m.workers[r.WorkerID]
			result = append(result, cp)
		}
	}
	return result
}

func capAt(recs []model.AttendanceRecord, limit int) []model.AttendanceRecord {
	if limit > 0 && len(recs) > limit {
		return recs[:limit]
	}
	return recs
}

// ── Mock WorkerRepository ──

type mockWorkerRepo struct {
	workers map[int64]*model.Worker
	listErr error
}

func newMockWorkerRepo() *mockWorkerRepo {
	return &mockWorkerRepo{workers: map[int64]*model.Worker{
		3:  {WorkerID: 3, Identification: "1-1111-1111", FullName: "Ana Mora", IsActive: true},
		5:  {WorkerID: 5, Identification: "2-2222-2222", FullName: "Luis Vargas", IsActive: true},
		10: {WorkerID: 10, Identification: "3-3333-3333", FullName: "Carlos Solís", IsActive: true},
		99: {WorkerID: 99, Identification: "9-9999-9999", FullName: "Inactivo", IsActive: false},
	}}
}

func (m *mockWorkerRepo) GetActiveByID(_ context.Context, id int64) (*model.Worker, error) {
	if w, ok := m.workers[id]; ok && w.IsActive {
		return w, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWorkerRepo) ListActive(_ context.Context) ([]model.Worker, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []model.Worker
	for _, w := range m.workers {
		if w.IsActive {
			result = append(result, *w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].FullName < result[j].FullName })
	return result, nil
}

// ── helpers ──

func newMockRepository() (*repository.Repository, *mockAttendanceRepo, *mockWorkerRepo) {
	workerRepo := newMockWorkerRepo()
	attRepo := newMockAttendanceRepo(workerRepo.workers)
	return &repository.Repository{
		Attendance: attRepo,
		Worker:     workerRepo,
	}, attRepo, workerRepo
}
