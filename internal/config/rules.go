package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/talgya/patria-grande/internal/recruitment"
	"github.com/talgya/patria-grande/internal/social"
)

// RulesFile is the on-disk shape of the recruitment rules.
//
//	archetypes:
//	  - name: infantry
//	    reinforcement: 100
//	    cost: 50
//	tiers:
//	  village:
//	    radius: 50
//	    units: [infantry]
type RulesFile struct {
	Archetypes []ArchetypeEntry      `yaml:"archetypes" validate:"required,min=1,dive"`
	Tiers      map[string]TierEntry `yaml:"tiers" validate:"required,min=1,dive"`
}

// ArchetypeEntry declares one archetype. Declaration order is menu order.
type ArchetypeEntry struct {
	Name          string `yaml:"name" validate:"required"`
	Reinforcement uint32 `yaml:"reinforcement" validate:"gt=0"`
	Cost          uint64 `yaml:"cost"`
}

// TierEntry configures one settlement tier. A missing radius uses the default.
type TierEntry struct {
	Radius *float64 `yaml:"radius" validate:"omitempty,gt=0"`
	Units  []string `yaml:"units" validate:"required,min=1,dive,required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadRules reads recruitment rules from path. An empty path returns the
// built-in defaults.
func LoadRules(path string) (recruitment.Rules, error) {
	if path == "" {
		return recruitment.DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return recruitment.Rules{}, fmt.Errorf("read rules: %w", err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return recruitment.Rules{}, fmt.Errorf("rules %s: %w", path, err)
	}
	return rules, nil
}

// ParseRules decodes and validates a YAML rules document.
func ParseRules(data []byte) (recruitment.Rules, error) {
	var file RulesFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return recruitment.Rules{}, fmt.Errorf("decode yaml: %w", err)
	}
	if err := validate.Struct(file); err != nil {
		return recruitment.Rules{}, fmt.Errorf("validate: %w", err)
	}
	return file.Rules()
}

// Rules converts the file into recruitment rules.
func (f RulesFile) Rules() (recruitment.Rules, error) {
	rules := recruitment.Rules{
		Archetypes: make([]recruitment.ArchetypeSpec, 0, len(f.Archetypes)),
		Tiers:      make(map[social.Tier]recruitment.TierRule, len(f.Tiers)),
	}
	for _, a := range f.Archetypes {
		rules.Archetypes = append(rules.Archetypes, recruitment.ArchetypeSpec{
			Name:          recruitment.Archetype(a.Name),
			Reinforcement: a.Reinforcement,
			Cost:          a.Cost,
		})
	}
	names := make([]string, 0, len(f.Tiers))
	for name := range f.Tiers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		entry := f.Tiers[name]
		tier, err := social.ParseTier(name)
		if err != nil {
			return recruitment.Rules{}, err
		}
		if _, dup := rules.Tiers[tier]; dup {
			return recruitment.Rules{}, fmt.Errorf("tier %s configured more than once", tier)
		}
		radius := recruitment.DefaultRadius
		if entry.Radius != nil {
			radius = *entry.Radius
		}
		units := make([]recruitment.Archetype, len(entry.Units))
		for i, u := range entry.Units {
			units[i] = recruitment.Archetype(u)
		}
		rules.Tiers[tier] = recruitment.TierRule{Radius: radius, Units: units}
	}
	return rules, nil
}
