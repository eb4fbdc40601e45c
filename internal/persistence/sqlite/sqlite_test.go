package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/testfixtures"
)

func newTestPool(t *testing.T) *ConnectionPool {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "portal.db")
	pool, err := Open(dsn)
	if err != nil {
		t.Fatalf("failed to open pool: %v", err)
	}

	t.Cleanup(func() {
		_ = pool.Close()
	})

	if err := pool.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return pool
}

func seedUser(t *testing.T, pool *ConnectionPool, user persistence.User) {
	t.Helper()

	if err := NewUserRepository(pool).CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user %s: %v", user.ID, err)
	}
}

// seedDoctor inserts the doctor together with its unit and specialty so the
// catalog foreign keys hold.
func seedDoctor(t *testing.T, pool *ConnectionPool, doctor testfixtures.DoctorFixture) {
	t.Helper()

	db := pool.DB()
	unit := doctor.Unit()
	if _, err := db.Exec(`INSERT OR IGNORE INTO units (id, name, address) VALUES (?, ?, ?)`,
		unit.ID, unit.Name, unit.Address); err != nil {
		t.Fatalf("failed to seed unit %s: %v", unit.ID, err)
	}
	specialty := doctor.Specialty()
	if _, err := db.Exec(`INSERT OR IGNORE INTO specialties (id, name) VALUES (?, ?)`,
		specialty.ID, specialty.Name); err != nil {
		t.Fatalf("failed to seed specialty %s: %v", specialty.ID, err)
	}
	if _, err := db.Exec(`INSERT INTO doctors (id, unit_id, specialty_id, name, active) VALUES (?, ?, ?, ?, ?)`,
		doctor.ID, doctor.UnitID, doctor.SpecialtyID, doctor.Name, boolToInt(doctor.Active)); err != nil {
		t.Fatalf("failed to seed doctor %s: %v", doctor.ID, err)
	}
}

func seedDependent(t *testing.T, pool *ConnectionPool, dependent persistence.Dependent) {
	t.Helper()

	if err := NewDependentRepository(pool).CreateDependent(context.Background(), dependent); err != nil {
		t.Fatalf("failed to seed dependent %s: %v", dependent.ID, err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)

	// A second run must be a no-op, not a re-apply.
	if err := pool.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	var version int
	err := pool.DB().QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version)
	if err != nil {
		t.Fatalf("failed to read schema version: %v", err)
	}
	if version != migrations[len(migrations)-1].version {
		t.Fatalf("expected schema version %d, got %d", migrations[len(migrations)-1].version, version)
	}
}
