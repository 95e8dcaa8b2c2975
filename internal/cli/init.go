package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aretw0/arbor/internal/config"
	loamAdapter "github.com/aretw0/arbor/pkg/adapters/loam"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
	"gopkg.in/yaml.v3"
)

// Init scaffolds a project in dir: an arbor.yaml with the defaults and a
// sample group. Existing files are left untouched.
func Init(ctx context.Context, dir string, w io.Writer) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	cfgPath := filepath.Join(dir, config.DefaultPath)
	if _, err := os.Stat(cfgPath); err == nil {
		printSystemMessage(w, "%s already exists, skipping.", cfgPath)
	} else if errors.Is(err, os.ErrNotExist) {
		if err := writeConfig(cfgPath); err != nil {
			return err
		}
		printSystemMessage(w, "Wrote %s", cfgPath)
	} else {
		return err
	}

	loader, err := loamAdapter.Create(dir)
	if err != nil {
		return err
	}
	ids, err := loader.ListGroups(ctx)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		printSystemMessage(w, "Found %d groups, skipping sample.", len(ids))
		return nil
	}

	g, err := sampleGroup()
	if err != nil {
		return err
	}
	if err := loader.SaveGroup(ctx, g); err != nil {
		return err
	}
	printSystemMessage(w, "Wrote sample group '%s'. Try: arbor run --dir %s", g.ID, dir)
	return nil
}

func writeConfig(path string) error {
	cfg := config.Default()
	// Groups live next to the config file.
	cfg.GroupsDir = "."
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func sampleGroup() (*domain.Group, error) {
	b := dsl.New("household").Named("Household")
	b.Question("has_pet").Text("Do you have a **pet**?").Choice("yes", "no").Required()
	b.If("has_pet", domain.OpEquals, "yes").Then(func(s *dsl.Scope) {
		s.Question("pet_name").Text("What is its name?").Repeatable("pets")
		s.If("pet_name", domain.OpCountGreaterThan, "2").Then(func(s *dsl.Scope) {
			s.Question("pet_help").Text("Do you need help taking care of them?").Choice("yes", "no")
		})
	})
	b.Question("moving").Text("Are you moving soon?").Choice("yes", "no")
	b.If("moving", domain.OpEquals, "no").EndFlow()
	b.Question("new_city").Text("Where to?").Help("City and country")
	g, err := b.Group()
	if err != nil {
		return nil, err
	}
	g.Description = "A sample questionnaire. Edit this file or add new ones next to it."
	return g, nil
}
