// Package migrations runs numbered deployment steps against a chain, in
// order, at most once per network.
package migrations

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var errDuplicateMigration = errors.New("duplicate migration id")

type Migration struct {
	ID   int
	Name string
	Up   Step
}

func (m Migration) String() string {
	return fmt.Sprintf("%d_%s", m.ID, m.Name)
}

// SupplyChain is the migration set of this repository.
var SupplyChain = []Migration{
	{ID: 2, Name: "deploy_contracts", Up: DeployContract("SupplyChain")},
}

type Runner struct {
	env        *Env
	store      ProgressStore
	network    string
	migrations []Migration

	// Reset runs every migration regardless of stored progress.
	Reset bool
}

// NewRunner creates a runner for one network. store may be nil, in which
// case every migration runs.
func NewRunner(env *Env, store ProgressStore, network string, migrations ...Migration) *Runner {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	return &Runner{
		env:        env,
		store:      store,
		network:    network,
		migrations: sorted,
	}
}

// Run executes pending migrations and stops at the first failure. It returns
// how many migrations completed.
func (r *Runner) Run(ctx context.Context) (int, error) {
	for i := 1; i < len(r.migrations); i++ {
		if r.migrations[i].ID == r.migrations[i-1].ID {
			return 0, fmt.Errorf("%w: %d", errDuplicateMigration, r.migrations[i].ID)
		}
	}

	last := 0
	if r.store != nil && !r.Reset {
		var err error
		if last, err = r.store.LastCompleted(r.network); err != nil {
			return 0, fmt.Errorf("read migration progress: %w", err)
		}
	}

	done := 0
	for _, m := range r.migrations {
		log := r.env.Log.WithField("migration", m.String())
		if m.ID <= last {
			log.Debug("already completed, skipping")
			continue
		}

		log.Info("running migration")
		if err := m.Up(ctx, r.env); err != nil {
			return done, fmt.Errorf("migration %s: %w", m, err)
		}
		done++

		if r.store != nil {
			if err := r.store.SetCompleted(r.network, m.ID); err != nil {
				return done, fmt.Errorf("save migration progress: %w", err)
			}
		}
	}

	r.env.Log.WithField("network", r.network).WithField("completed", done).Info("migrations finished")
	return done, nil
}
