package background

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const bucketTasks = "tasks"

// Registration is a persisted background task registration.
type Registration struct {
	Name         string        `json:"name"`
	Interval     time.Duration `json:"interval"`
	StopOnTerm   bool          `json:"stop_on_terminate"`
	StartOnBoot  bool          `json:"start_on_boot"`
	RegisteredAt time.Time     `json:"registered_at"`
	LastRun      time.Time     `json:"last_run,omitempty"`
	Runs         int64         `json:"runs"`
	Failures     int64         `json:"failures"`
}

// Registry persists registrations in a bbolt database so they survive
// process restarts.
type Registry struct {
	db *bbolt.DB
}

// OpenRegistry opens (creating if needed) the registry at path.
func OpenRegistry(path string) (*Registry, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create registry dir: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketTasks))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket %s: %w", bucketTasks, err)
	}

	return &Registry{db: db}, nil
}

// Close closes the database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Get returns the registration for name.
func (r *Registry) Get(ctx context.Context, name string) (Registration, bool, error) {
	if err := ctx.Err(); err != nil {
		return Registration{}, false, err
	}
	var reg Registration
	found := false
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketTasks)).Get([]byte(name))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &reg)
	})
	if err != nil {
		return Registration{}, false, fmt.Errorf("get registration %s: %w", name, err)
	}
	return reg, found, nil
}

// PutIfAbsent stores reg unless a registration with the same name exists.
// It reports whether reg was stored.
func (r *Registry) PutIfAbsent(ctx context.Context, reg Registration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	stored := false
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketTasks))
		if b.Get([]byte(reg.Name)) != nil {
			return nil
		}
		data, err := json.Marshal(reg)
		if err != nil {
			return err
		}
		stored = true
		return b.Put([]byte(reg.Name), data)
	})
	if err != nil {
		return false, fmt.Errorf("put registration %s: %w", reg.Name, err)
	}
	return stored, nil
}

// Delete removes a registration. Missing names are not an error.
func (r *Registry) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketTasks)).Delete([]byte(name))
	})
}

// List returns every registration ordered by name.
func (r *Registry) List(ctx context.Context) ([]Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var regs []Registration
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketTasks)).ForEach(func(_, v []byte) error {
			var reg Registration
			if err := json.Unmarshal(v, &reg); err != nil {
				return err
			}
			regs = append(regs, reg)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

// RecordRun updates the run statistics of a registration.
func (r *Registry) RecordRun(name string, at time.Time, failed bool) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketTasks))
		data := b.Get([]byte(name))
		if data == nil {
			return nil
		}
		var reg Registration
		if err := json.Unmarshal(data, &reg); err != nil {
			return err
		}
		reg.LastRun = at
		reg.Runs++
		if failed {
			reg.Failures++
		}
		out, err := json.Marshal(reg)
		if err != nil {
			return err
		}
		return b.Put([]byte(name), out)
	})
}
