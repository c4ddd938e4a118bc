package core

import (
	"fmt"
	"os"

	"pramcore/internal/infra/persistence/memory"
	"pramcore/internal/infra/persistence/postgres"
	"pramcore/internal/infra/persistence/sqlite"
	"pramcore/pkg/domain"
)

// TrajectoryDriver identifies a concrete trajectory store implementation.
type TrajectoryDriver string

const (
	TrajectoryMemory   TrajectoryDriver = "memory"   // in-memory only (tests / ephemeral)
	TrajectorySQLite   TrajectoryDriver = "sqlite"   // embedded sqlite file
	TrajectoryPostgres TrajectoryDriver = "postgres" // PostgreSQL server
)

// OpenTrajectoryStore selects a trajectory backend using environment
// variables. Defaults to memory when unset.
//
//	PRAMCORE_TRAJ_DRIVER: memory|sqlite|postgres (default memory)
//	PRAMCORE_SQLITE_PATH: path to sqlite file (default ./pramcore.db)
//	PRAMCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenTrajectoryStore() (domain.TrajectoryStore, error) {
	driver := os.Getenv("PRAMCORE_TRAJ_DRIVER")
	if driver == "" {
		driver = string(TrajectoryMemory)
	}
	switch TrajectoryDriver(driver) {
	case TrajectoryMemory:
		return memory.NewStore(), nil
	case TrajectorySQLite:
		path := os.Getenv("PRAMCORE_SQLITE_PATH")
		return sqlite.NewStore(path)
	case TrajectoryPostgres:
		dsn := os.Getenv("PRAMCORE_POSTGRES_DSN")
		return postgres.NewStore(dsn)
	default:
		return nil, fmt.Errorf("unknown trajectory driver %s", driver)
	}
}
