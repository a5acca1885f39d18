package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"orthotracker/internal/infrastructure/persistence/gormstore/model"
	"orthotracker/internal/infrastructure/persistence/gormstore/uow"
	"orthotracker/internal/ports"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "orthotracker.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func TestUserRepositoryCreateAndLookup(t *testing.T) {
	repo := NewUserRepository(setupDB(t))
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, ports.User{
		Email:          "Ann@Example.com",
		FullName:       "Ann Otieno",
		HashedPassword: "hash",
		Role:           "rep",
		IsActive:       true,
		CreatedAt:      nowString(),
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if user.UserID == 0 || user.Email != "ann@example.com" {
		t.Fatalf("CreateUser() = %#v", user)
	}

	got, err := repo.GetUserByEmail(ctx, "ANN@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if got.UserID != user.UserID || !got.IsActive {
		t.Fatalf("GetUserByEmail() = %#v", got)
	}

	if _, err := repo.CreateUser(ctx, ports.User{
		Email:     "ann@example.com",
		FullName:  "Dup",
		Role:      "rep",
		CreatedAt: nowString(),
	}); !errors.Is(err, ports.ErrEmailExists) {
		t.Fatalf("CreateUser(dup) error = %v, want ErrEmailExists", err)
	}

	if _, err := repo.GetUserByID(ctx, 999); !errors.Is(err, ports.ErrUserNotFound) {
		t.Fatalf("GetUserByID(missing) error = %v", err)
	}

	rep, err := repo.CreateRep(ctx, ports.Rep{UserID: user.UserID, Territory: "Nairobi"})
	if err != nil {
		t.Fatalf("CreateRep() error = %v", err)
	}
	gotRep, err := repo.GetRepByUserID(ctx, user.UserID)
	if err != nil {
		t.Fatalf("GetRepByUserID() error = %v", err)
	}
	if gotRep.RepID != rep.RepID || gotRep.Territory != "Nairobi" {
		t.Fatalf("GetRepByUserID() = %#v", gotRep)
	}
}

func TestUserRepositoryKeepsInactiveFlag(t *testing.T) {
	repo := NewUserRepository(setupDB(t))
	ctx := context.Background()

	user, err := repo.CreateUser(ctx, ports.User{
		Email:     "off@example.com",
		FullName:  "Off",
		Role:      "rep",
		IsActive:  false,
		CreatedAt: nowString(),
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	got, err := repo.GetUserByID(ctx, user.UserID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.IsActive {
		t.Fatalf("GetUserByID() is_active = true, want false")
	}
}

func TestReferenceRepositoryHospitalsAndSurgeons(t *testing.T) {
	repo := NewReferenceRepository(setupDB(t))
	ctx := context.Background()

	mater, err := repo.CreateHospital(ctx, ports.Hospital{Name: "Mater", Address: "Dunga Rd"})
	if err != nil {
		t.Fatalf("CreateHospital() error = %v", err)
	}
	county, err := repo.CreateHospital(ctx, ports.Hospital{Name: "County Hospital"})
	if err != nil {
		t.Fatalf("CreateHospital() error = %v", err)
	}
	if _, err := repo.CreateHospital(ctx, ports.Hospital{Name: "mater"}); !errors.Is(err, ports.ErrHospitalExists) {
		t.Fatalf("CreateHospital(dup) error = %v, want ErrHospitalExists", err)
	}

	hospitals, err := repo.ListHospitals(ctx)
	if err != nil {
		t.Fatalf("ListHospitals() error = %v", err)
	}
	if len(hospitals) != 2 || hospitals[0].Name != "County Hospital" {
		t.Fatalf("ListHospitals() = %#v", hospitals)
	}

	if _, err := repo.CreateSurgeon(ctx, ports.Surgeon{Name: "Dr. Kamau", HospitalID: mater.HospitalID}); err != nil {
		t.Fatalf("CreateSurgeon() error = %v", err)
	}
	if _, err := repo.CreateSurgeon(ctx, ports.Surgeon{Name: "Dr. Wanjiru", HospitalID: county.HospitalID}); err != nil {
		t.Fatalf("CreateSurgeon() error = %v", err)
	}

	all, err := repo.ListSurgeons(ctx, 0)
	if err != nil {
		t.Fatalf("ListSurgeons(0) error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("ListSurgeons(0) len = %d", len(all))
	}
	atMater, err := repo.ListSurgeons(ctx, mater.HospitalID)
	if err != nil {
		t.Fatalf("ListSurgeons(mater) error = %v", err)
	}
	if len(atMater) != 1 || atMater[0].Name != "Dr. Kamau" {
		t.Fatalf("ListSurgeons(mater) = %#v", atMater)
	}

	if _, err := repo.GetHospital(ctx, 999); !errors.Is(err, ports.ErrHospitalNotFound) {
		t.Fatalf("GetHospital(missing) error = %v", err)
	}
}

func TestProcedureRepositoryCommissionUpsertAndStats(t *testing.T) {
	repo := NewProcedureRepository(setupDB(t))
	ctx := context.Background()

	knee, err := repo.CreateProcedure(ctx, ports.Procedure{
		RepID:         1,
		RepName:       "Ann",
		Hospital:      "County Hospital",
		ProcedureType: "Knee Arthroplasty",
		Date:          "2025-03-01",
		Revenue:       200000,
		Status:        "pending",
		CreatedAt:     nowString(),
	})
	if err != nil {
		t.Fatalf("CreateProcedure() error = %v", err)
	}
	hip, err := repo.CreateProcedure(ctx, ports.Procedure{
		RepID:         2,
		RepName:       "Ben",
		Hospital:      "Mater",
		ProcedureType: "Hip Arthroplasty",
		Date:          "2025-03-05",
		Revenue:       100000,
		Status:        "approved",
		CreatedAt:     nowString(),
	})
	if err != nil {
		t.Fatalf("CreateProcedure() error = %v", err)
	}

	if _, err := repo.SaveCommission(ctx, ports.Commission{ProcedureID: knee.ProcedureID, RepID: 1, Amount: 11000, CalculatedAt: nowString()}); err != nil {
		t.Fatalf("SaveCommission() error = %v", err)
	}
	updated, err := repo.SaveCommission(ctx, ports.Commission{ProcedureID: knee.ProcedureID, RepID: 1, Amount: 12000, CalculatedAt: nowString()})
	if err != nil {
		t.Fatalf("SaveCommission(update) error = %v", err)
	}
	if updated.Amount != 12000 || updated.CommissionID == 0 {
		t.Fatalf("SaveCommission(update) = %#v", updated)
	}
	if _, err := repo.SaveCommission(ctx, ports.Commission{ProcedureID: hip.ProcedureID, RepID: 2, Amount: 500, CalculatedAt: nowString()}); err != nil {
		t.Fatalf("SaveCommission() error = %v", err)
	}

	commissions, err := repo.ListCommissions(ctx, []uint64{knee.ProcedureID, hip.ProcedureID})
	if err != nil {
		t.Fatalf("ListCommissions() error = %v", err)
	}
	if len(commissions) != 2 || commissions[knee.ProcedureID].Amount != 12000 {
		t.Fatalf("ListCommissions() = %#v", commissions)
	}

	stats, err := repo.ProcedureStats(ctx)
	if err != nil {
		t.Fatalf("ProcedureStats() error = %v", err)
	}
	if stats.Total != 2 || stats.TotalRevenue != 300000 || stats.Pending != 1 || stats.TotalCommission != 12500 {
		t.Fatalf("ProcedureStats() = %#v", stats)
	}
	if len(stats.ByType) != 2 {
		t.Fatalf("ProcedureStats() by type = %#v", stats.ByType)
	}

	recent, err := repo.ListRecentProcedures(ctx, 1)
	if err != nil {
		t.Fatalf("ListRecentProcedures() error = %v", err)
	}
	if len(recent) != 1 || recent[0].ProcedureID != hip.ProcedureID {
		t.Fatalf("ListRecentProcedures() = %#v", recent)
	}

	mine, err := repo.ListProcedures(ctx, ports.ProcedureFilter{RepID: 1})
	if err != nil {
		t.Fatalf("ListProcedures() error = %v", err)
	}
	if len(mine) != 1 || mine[0].ProcedureID != knee.ProcedureID {
		t.Fatalf("ListProcedures(rep 1) = %#v", mine)
	}

	if _, err := repo.GetCommission(ctx, 999); !errors.Is(err, ports.ErrCommissionNotFound) {
		t.Fatalf("GetCommission(missing) error = %v", err)
	}
}

func TestProcedureRepositoryEmptyStats(t *testing.T) {
	repo := NewProcedureRepository(setupDB(t))

	stats, err := repo.ProcedureStats(context.Background())
	if err != nil {
		t.Fatalf("ProcedureStats() error = %v", err)
	}
	if stats.Total != 0 || stats.TotalRevenue != 0 || stats.TotalCommission != 0 || len(stats.ByType) != 0 {
		t.Fatalf("ProcedureStats() = %#v", stats)
	}
}

func TestRuleRepositorySetActive(t *testing.T) {
	repo := NewRuleRepository(setupDB(t))
	ctx := context.Background()

	rule, err := repo.CreateRule(ctx, ports.CommissionRule{
		Name:          "knee 5%",
		ConditionJSON: `{"procedure_type":"Knee Arthroplasty"}`,
		Mode:          "percentage",
		Value:         5,
		Active:        true,
		EffectiveFrom: "2000-01-01T00:00:00Z",
		EffectiveTo:   "2099-01-01T00:00:00Z",
		CreatedAt:     nowString(),
	})
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}

	if err := repo.SetRuleActive(ctx, rule.RuleID, false); err != nil {
		t.Fatalf("SetRuleActive() error = %v", err)
	}
	got, err := repo.GetRule(ctx, rule.RuleID)
	if err != nil {
		t.Fatalf("GetRule() error = %v", err)
	}
	if got.Active {
		t.Fatalf("GetRule() active = true after deactivate")
	}

	if err := repo.SetRuleActive(ctx, 999, true); !errors.Is(err, ports.ErrRuleNotFound) {
		t.Fatalf("SetRuleActive(missing) error = %v", err)
	}
}

func TestAuditRepositoryNewestFirst(t *testing.T) {
	repo := NewAuditRepository(setupDB(t))
	ctx := context.Background()

	for _, action := range []string{"register", "login", "create_procedure"} {
		if err := repo.AppendAudit(ctx, ports.AuditEntry{
			Actor:     "ann@example.com",
			Action:    action,
			Entity:    "user",
			EntityID:  "1",
			CreatedAt: "2025-03-14T10:00:00Z",
		}); err != nil {
			t.Fatalf("AppendAudit(%s) error = %v", action, err)
		}
	}

	items, err := repo.ListAudit(ctx, 2)
	if err != nil {
		t.Fatalf("ListAudit() error = %v", err)
	}
	if len(items) != 2 || items[0].Action != "create_procedure" || items[1].Action != "login" {
		t.Fatalf("ListAudit() = %#v", items)
	}
}

func TestRepositoriesJoinUnitOfWork(t *testing.T) {
	db := setupDB(t)
	procedures := NewProcedureRepository(db)
	audit := NewAuditRepository(db)
	ctx := context.Background()

	rollback := errors.New("rollback")
	err := uow.NewUnitOfWork(db).WithTx(ctx, func(txCtx context.Context) error {
		if _, err := procedures.CreateProcedure(txCtx, ports.Procedure{
			RepID:         1,
			RepName:       "Ann",
			Hospital:      "Mater",
			ProcedureType: "Other",
			Date:          "2025-03-01",
			Status:        "pending",
			CreatedAt:     nowString(),
		}); err != nil {
			return err
		}
		if err := audit.AppendAudit(txCtx, ports.AuditEntry{
			Actor:     "ann@example.com",
			Action:    "create_procedure",
			Entity:    "procedure",
			EntityID:  "1",
			CreatedAt: nowString(),
		}); err != nil {
			return err
		}
		return rollback
	})
	if !errors.Is(err, rollback) {
		t.Fatalf("WithTx() error = %v, want rollback", err)
	}

	items, err := procedures.ListProcedures(ctx, ports.ProcedureFilter{})
	if err != nil {
		t.Fatalf("ListProcedures() error = %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("ListProcedures() len = %d after rollback", len(items))
	}
	entries, err := audit.ListAudit(ctx, 0)
	if err != nil {
		t.Fatalf("ListAudit() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("ListAudit() len = %d after rollback", len(entries))
	}
}
