package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/dharsanguruparan/QCBoard/internal/model"
)

// Seed is the YAML fixture format. Records without an id get a fresh one on
// every Apply.
type Seed struct {
	Companies   []model.Company       `yaml:"companies"`
	Projects    []model.Project       `yaml:"projects"`
	Submittals  []model.Submittal     `yaml:"submittals"`
	RFIs        []model.RFI           `yaml:"rfis"`
	Inspections []model.Inspection    `yaml:"inspections"`
	Objects     []model.DrawingObject `yaml:"objects"`
	Insights    []model.AIInsight     `yaml:"insights"`
}

// LoadSeed reads and parses a fixture file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return &seed, nil
}

// Apply inserts the fixture into stores. Records whose id already exists are
// left as they are, so re-applying on restart never overwrites live data.
func (s *Seed) Apply(ctx context.Context, stores *Stores) error {
	steps := []func() error{
		func() error { return putAll(ctx, stores.Companies, s.Companies) },
		func() error { return putAll(ctx, stores.Projects, s.Projects) },
		func() error { return putAll(ctx, stores.Submittals, s.Submittals) },
		func() error { return putAll(ctx, stores.RFIs, s.RFIs) },
		func() error { return putAll(ctx, stores.Inspections, s.Inspections) },
		func() error { return putAll(ctx, stores.Objects, s.Objects) },
		func() error { return putAll(ctx, stores.Insights, s.Insights) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// Counts reports how many records of each kind the fixture holds, for the
// startup log line.
func (s *Seed) Counts() map[string]int {
	return map[string]int{
		KindCompany:    len(s.Companies),
		KindProject:    len(s.Projects),
		KindSubmittal:  len(s.Submittals),
		KindRFI:        len(s.RFIs),
		KindInspection: len(s.Inspections),
		KindObject:     len(s.Objects),
		KindInsight:    len(s.Insights),
	}
}

func putAll[T model.Entity[T]](ctx context.Context, repo Repository[T], items []T) error {
	for _, item := range items {
		if item.EntityID() == "" {
			item = item.WithID(uuid.NewString())
		} else if _, err := repo.Get(ctx, item.EntityID()); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("seed %s: %w", item.EntityID(), err)
		}
		if err := repo.Put(ctx, item); err != nil {
			return fmt.Errorf("seed %s: %w", item.EntityID(), err)
		}
	}
	return nil
}
