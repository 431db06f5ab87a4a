package policy

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy is the declarative configuration surface of the pipeline: per entity
// type, the system-of-record assignment for every field, the change-tracked
// field set, critical-field weights for quality scoring, and the dependency
// edges the orchestrator must respect. It is loaded once and passed explicitly
// into merge calls, never read from ambient globals.
type Policy struct {
	WindowDays int                     `yaml:"window_days"`
	Entities   map[string]EntityPolicy `yaml:"entities"`
}

// EntityPolicy configures one entity type.
type EntityPolicy struct {
	EntityType string               `yaml:"-"`
	SourceA    string               `yaml:"source_a"`
	SourceB    string               `yaml:"source_b"`
	DependsOn  []string             `yaml:"depends_on"`
	WindowDays int                  `yaml:"window_days"`
	Fields     map[string]FieldRule `yaml:"fields"`
	Derived    []DerivedField       `yaml:"derived"`
	Tracked    []string             `yaml:"tracked"`
	Critical   []CriticalField      `yaml:"critical"`
}

// FieldRule designates the primary source for one output field. The other
// source is the implicit fallback when the primary value is null.
type FieldRule struct {
	Primary   string `yaml:"primary"`
	Normalize string `yaml:"normalize"`
}

// DerivedField is a composite computed after per-field resolution,
// e.g. full_name from first_name + last_name.
type DerivedField struct {
	Field     string   `yaml:"field"`
	Parts     []string `yaml:"parts"`
	Separator string   `yaml:"separator"`
}

// CriticalField weights one field in the 0-100 data quality score. At most one
// validator applies: a regex pattern, a numeric range, or category membership.
// A field with no validator scores on presence alone.
type CriticalField struct {
	Field   string   `yaml:"field"`
	Weight  int      `yaml:"weight"`
	Pattern string   `yaml:"pattern"`
	Min     *float64 `yaml:"min"`
	Max     *float64 `yaml:"max"`
	OneOf   []string `yaml:"one_of"`
}

// Load reads and validates a policy file.
func Load(path string) (Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	var p Policy
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy file: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	for name, entity := range p.Entities {
		entity.EntityType = name
		p.Entities[name] = entity
	}
	return p, nil
}

// Entity looks up the policy for one entity type.
func (p Policy) Entity(entityType string) (EntityPolicy, bool) {
	entity, ok := p.Entities[strings.TrimSpace(entityType)]
	return entity, ok
}

// Validate rejects policies that would make merge behavior ambiguous.
func (p Policy) Validate() error {
	if p.WindowDays < 0 {
		return fmt.Errorf("policy: window_days must not be negative")
	}
	if len(p.Entities) == 0 {
		return fmt.Errorf("policy: at least one entity type is required")
	}
	for name, entity := range p.Entities {
		if entity.SourceA == "" || entity.SourceB == "" {
			return fmt.Errorf("policy %q: source_a and source_b are required", name)
		}
		if entity.SourceA == entity.SourceB {
			return fmt.Errorf("policy %q: source_a and source_b must differ", name)
		}
		if len(entity.Fields) == 0 {
			return fmt.Errorf("policy %q: at least one field rule is required", name)
		}
		for field, rule := range entity.Fields {
			if rule.Primary != entity.SourceA && rule.Primary != entity.SourceB {
				return fmt.Errorf("policy %q field %q: primary %q is not a configured source", name, field, rule.Primary)
			}
			switch rule.Normalize {
			case "", "fold", "upper":
			default:
				return fmt.Errorf("policy %q field %q: unknown normalize rule %q", name, field, rule.Normalize)
			}
		}
		if len(entity.Tracked) == 0 {
			return fmt.Errorf("policy %q: tracked field set is required", name)
		}
		for _, derived := range entity.Derived {
			if derived.Field == "" || len(derived.Parts) == 0 {
				return fmt.Errorf("policy %q: derived fields need a name and parts", name)
			}
		}
		for _, critical := range entity.Critical {
			if critical.Field == "" {
				return fmt.Errorf("policy %q: critical field name is required", name)
			}
			if critical.Weight <= 0 {
				return fmt.Errorf("policy %q critical %q: weight must be positive", name, critical.Field)
			}
			if critical.Pattern != "" {
				if _, err := regexp.Compile(critical.Pattern); err != nil {
					return fmt.Errorf("policy %q critical %q: bad pattern: %w", name, critical.Field, err)
				}
			}
			if critical.Min != nil && critical.Max != nil && *critical.Min > *critical.Max {
				return fmt.Errorf("policy %q critical %q: min exceeds max", name, critical.Field)
			}
		}
		for _, dep := range entity.DependsOn {
			if dep == name {
				return fmt.Errorf("policy %q: entity cannot depend on itself", name)
			}
			if _, ok := p.Entities[dep]; !ok {
				return fmt.Errorf("policy %q: unknown dependency %q", name, dep)
			}
		}
	}
	return nil
}

// Fallback returns the non-primary source for a field rule.
func (e EntityPolicy) Fallback(primary string) string {
	if primary == e.SourceA {
		return e.SourceB
	}
	return e.SourceA
}

// Window returns the entity's rolling recency window in days, falling back to
// the policy-wide default, then to 90.
func (e EntityPolicy) Window(defaultDays int) int {
	if e.WindowDays > 0 {
		return e.WindowDays
	}
	if defaultDays > 0 {
		return defaultDays
	}
	return 90
}
