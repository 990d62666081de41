package profile

import (
	"fmt"

	"github.com/matheus3301/chatty/internal/config"
)

const DefaultName = "main"

// Source records where the active profile name came from.
type Source int

const (
	SourceDefault Source = iota
	SourceConfig
	SourceFlag
)

func (s Source) String() string {
	switch s {
	case SourceFlag:
		return "flag"
	case SourceConfig:
		return "config"
	default:
		return "default"
	}
}

// Selection is the active profile name and its origin.
type Selection struct {
	Name   string
	Source Source
}

// Select picks the profile: an explicit name first, then the config's
// default_profile, then "main". cfg may be nil.
func Select(explicit string, cfg *config.Config) Selection {
	switch {
	case explicit != "":
		return Selection{Name: explicit, Source: SourceFlag}
	case cfg != nil && cfg.DefaultProfile != "":
		return Selection{Name: cfg.DefaultProfile, Source: SourceConfig}
	}
	return Selection{Name: DefaultName, Source: SourceDefault}
}

// Resolve selects the profile, consulting the shared config only when no
// name is given, and validates the result. A config file that exists but
// does not parse is reported rather than skipped.
func Resolve(explicit string) (Selection, error) {
	var cfg *config.Config
	if explicit == "" {
		var err error
		if cfg, err = config.LoadOrDefault(ConfigPath()); err != nil {
			return Selection{}, fmt.Errorf("resolve profile: %w", err)
		}
	}
	sel := Select(explicit, cfg)
	if err := ValidateName(sel.Name); err != nil {
		return Selection{}, fmt.Errorf("%s profile: %w", sel.Source, err)
	}
	return sel, nil
}
