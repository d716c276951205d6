//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/model"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/internal/repository"
	"github.com/CristhianMorales19/sistema-gestion-agricola-sub003/pkg/database"
	pkgerrors "github.com/CristhianMorales19/sistema-gestion-agricola-sub003/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Preparación
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=agromano password=agromano_password dbname=agromano_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "no se pudo conectar a la base de pruebas: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "no se pudo obtener sql.DB: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "migraciones fallaron: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func setupWorker(t *testing.T) (*model.Worker, func()) {
	t.Helper()
	w := &model.Worker{
		Identification: fmt.Sprintf("ID-%d", time.Now().UnixNano()),
		FullName:       "Trabajador de prueba",
		IsActive:       true,
	}
	if err := testDB.Create(w).Error; err != nil {
		t.Fatalf("no se pudo crear trabajador: %v", err)
	}
	return w, func() {
		testDB.Where("worker_id = ?", w.WorkerID).Delete(&model.AttendanceRecord{})
		testDB.Unscoped().Where("worker_id = ?", w.WorkerID).Delete(&model.Worker{})
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ═══════════════════════════════════════════════════════════
// AttendanceRepository
// ═══════════════════════════════════════════════════════════

func TestAttendanceRepo_CreateEntry_Duplicate(t *testing.T) {
	w, cleanup := setupWorker(t)
	defer cleanup()

	repo := repository.NewAttendanceRepo(testDB)
	ctx := context.Background()
	d := day(2025, 10, 8)

	first := &model.AttendanceRecord{WorkerID: w.WorkerID, Date: d, EntryTime: d.Add(8 * time.Hour), Status: model.StatusIncomplete}
	if err := repo.CreateEntry(ctx, first); err != nil {
		t.Fatalf("primera entrada debería insertarse: %v", err)
	}
	if first.AttendanceID == 0 {
		t.Error("se esperaba id asignado")
	}

	second := &model.AttendanceRecord{WorkerID: w.WorkerID, Date: d, EntryTime: d.Add(9 * time.Hour), Status: model.StatusIncomplete}
	if err := repo.CreateEntry(ctx, second); !errors.Is(err, pkgerrors.ErrDuplicateKey) {
		t.Fatalf("esperado ErrDuplicateKey, obtenido: %v", err)
	}

	exists, err := repo.ExistsByWorkerAndDate(ctx, w.WorkerID, d)
	if err != nil || !exists {
		t.Errorf("ExistsByWorkerAndDate debería ser true: %v %v", exists, err)
	}
}

func TestAttendanceRepo_CreateEntry_ConcurrentSingleWinner(t *testing.T) {
	w, cleanup := setupWorker(t)
	defer cleanup()

	repo := repository.NewAttendanceRepo(testDB)
	d := day(2025, 10, 9)

	const n = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, dup := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := &model.AttendanceRecord{WorkerID: w.WorkerID, Date: d, EntryTime: d.Add(time.Duration(7*60+i) * time.Minute), Status: model.StatusIncomplete}
			err := repo.CreateEntry(context.Background(), rec)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, pkgerrors.ErrDuplicateKey):
				dup++
			default:
				t.Errorf("error inesperado: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if ok != 1 || dup != n-1 {
		t.Fatalf("esperado 1 inserción y %d duplicados, obtenido ok=%d dup=%d", n-1, ok, dup)
	}

	var count int64
	testDB.Model(&model.AttendanceRecord{}).Where("worker_id = ? AND date = ?", w.WorkerID, d).Count(&count)
	if count != 1 {
		t.Errorf("esperado 1 registro persistido, obtenido %d", count)
	}
}

func TestAttendanceRepo_CloseEntry_OnlyOnce(t *testing.T) {
	w, cleanup := setupWorker(t)
	defer cleanup()

	repo := repository.NewAttendanceRepo(testDB)
	ctx := context.Background()
	d := day(2025, 10, 10)

	rec := &model.AttendanceRecord{WorkerID: w.WorkerID, Date: d, EntryTime: d.Add(8 * time.Hour), Status: model.StatusIncomplete}
	if err := repo.CreateEntry(ctx, rec); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	open, err := repo.FindOpenByWorkerAndDate(ctx, w.WorkerID, d)
	if err != nil {
		t.Fatalf("FindOpenByWorkerAndDate: %v", err)
	}

	exit := d.Add(16*time.Hour + 30*time.Minute)
	hours := 8.5
	open.ExitTime = &exit
	open.WorkedHours = &hours
	open.Status = model.StatusComplete
	if err := repo.CloseEntry(ctx, open); err != nil {
		t.Fatalf("CloseEntry: %v", err)
	}
	if err := repo.CloseEntry(ctx, open); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("segundo cierre debería fallar con ErrOptimisticLock, obtenido: %v", err)
	}

	if _, err := repo.FindOpenByWorkerAndDate(ctx, w.WorkerID, d); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("no debería quedar entrada abierta: %v", err)
	}

	var closed model.AttendanceRecord
	if err := testDB.Where("worker_id = ? AND date = ?", w.WorkerID, d).First(&closed).Error; err != nil {
		t.Fatalf("lectura del registro cerrado: %v", err)
	}
	if closed.WorkedHours == nil || *closed.WorkedHours != 8.5 {
		t.Errorf("esperado worked_hours=8.5, obtenido %v", closed.WorkedHours)
	}
}

func TestAttendanceRepo_ListOrdering(t *testing.T) {
	w1, c1 := setupWorker(t)
	defer c1()
	w2, c2 := setupWorker(t)
	defer c2()

	repo := repository.NewAttendanceRepo(testDB)
	ctx := context.Background()
	d := day(2025, 10, 11)

	early := &model.AttendanceRecord{WorkerID: w1.WorkerID, Date: d, EntryTime: d.Add(6 * time.Hour), Status: model.StatusIncomplete}
	late := &model.AttendanceRecord{WorkerID: w2.WorkerID, Date: d, EntryTime: d.Add(9 * time.Hour), Status: model.StatusIncomplete}
	// se crea primero la más tardía para distinguir created_at de entry_time
	if err := repo.CreateEntry(ctx, late); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := repo.CreateEntry(ctx, early); err != nil {
		t.Fatal(err)
	}

	pending, err := repo.ListOpenByDate(ctx, d, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) < 2 || pending[0].WorkerID != w1.WorkerID {
		t.Errorf("pendientes deberían ordenarse por hora de entrada ascendente")
	}
	if pending[0].Worker == nil || pending[0].Worker.FullName == "" {
		t.Error("se esperaba el trabajador precargado")
	}

	today, err := repo.ListByDate(ctx, d, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(today) < 2 || today[0].WorkerID != w1.WorkerID {
		t.Errorf("entradas del día deberían ordenarse por creación descendente")
	}
}

// ═══════════════════════════════════════════════════════════
// WorkerRepository
// ═══════════════════════════════════════════════════════════

func TestWorkerRepo_ActiveOnly(t *testing.T) {
	w, cleanup := setupWorker(t)
	defer cleanup()

	repo := repository.NewWorkerRepo(testDB)
	ctx := context.Background()

	if _, err := repo.GetActiveByID(ctx, w.WorkerID); err != nil {
		t.Fatalf("GetActiveByID: %v", err)
	}

	testDB.Model(&model.Worker{}).Where("worker_id = ?", w.WorkerID).Update("is_active", false)
	if _, err := repo.GetActiveByID(ctx, w.WorkerID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("trabajador inactivo no debería encontrarse: %v", err)
	}
}
