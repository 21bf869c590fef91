package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/siohaza/weaponsim/internal/protocol"
	"github.com/siohaza/weaponsim/internal/validation"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var ErrUnknownKind = errors.New("unknown weapon kind")

// Spec is the immutable constant row for one weapon kind. Times are seconds.
type Spec struct {
	Kind                   protocol.WeaponType `toml:"kind" yaml:"kind"`
	Name                   string              `toml:"name" yaml:"name"`
	FireDelay              float64             `toml:"fire_delay" yaml:"fire_delay"`
	ClipSize               int                 `toml:"clip_size" yaml:"clip_size"`
	MaxStock               int                 `toml:"max_stock" yaml:"max_stock"`
	ReloadTime             float64             `toml:"reload_time" yaml:"reload_time"`
	EjectsBrass            bool                `toml:"ejects_brass" yaml:"ejects_brass"`
	EjectBrassDelay        float64             `toml:"eject_brass_delay" yaml:"eject_brass_delay"`
	SlowReload             bool                `toml:"slow_reload" yaml:"slow_reload"`
	InterruptibleReload    bool                `toml:"interruptible_reload" yaml:"interruptible_reload"`
	SemiAutomatic          bool                `toml:"semi_automatic" yaml:"semi_automatic"`
	LockSwitchDuringReload bool                `toml:"lock_switch_during_reload" yaml:"lock_switch_during_reload"`
	PelletCount            int                 `toml:"pellet_count" yaml:"pellet_count"`
	Recoil                 Recoil              `toml:"recoil" yaml:"recoil"`
	Spread                 float64             `toml:"spread" yaml:"spread"`
	BaseDamage             DamageTable         `toml:"damage" yaml:"damage"`
	Falloff                *Falloff            `toml:"falloff" yaml:"falloff"`
}

type Recoil struct {
	X float64 `toml:"x" yaml:"x"`
	Y float64 `toml:"y" yaml:"y"`
}

type DamageTable struct {
	Head  int `toml:"head" yaml:"head"`
	Torso int `toml:"torso" yaml:"torso"`
	Arms  int `toml:"arms" yaml:"arms"`
	Legs  int `toml:"legs" yaml:"legs"`
}

// Falloff scales damage linearly from 1 at Start to MinScale at End.
type Falloff struct {
	Start    float64 `toml:"start" yaml:"start"`
	End      float64 `toml:"end" yaml:"end"`
	MinScale float64 `toml:"min_scale" yaml:"min_scale"`
}

func (s Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("weapon %d: name cannot be empty", s.Kind)
	}
	if s.ClipSize <= 0 || s.ClipSize > protocol.MaxAmmo {
		return fmt.Errorf("weapon %s: clip_size must be within [1, %d]", s.Name, protocol.MaxAmmo)
	}
	if s.MaxStock < 0 || s.MaxStock > protocol.MaxAmmo {
		return fmt.Errorf("weapon %s: max_stock must be within [0, %d]", s.Name, protocol.MaxAmmo)
	}
	if !(s.FireDelay > 0) || !validation.IsFinite(s.FireDelay) {
		return fmt.Errorf("weapon %s: fire_delay must be positive", s.Name)
	}
	if !(s.ReloadTime > 0) || !validation.IsFinite(s.ReloadTime) {
		return fmt.Errorf("weapon %s: reload_time must be positive", s.Name)
	}
	if !validation.IsValidDelta(s.EjectBrassDelay) {
		return fmt.Errorf("weapon %s: eject_brass_delay cannot be negative", s.Name)
	}
	if s.PelletCount < 1 {
		return fmt.Errorf("weapon %s: pellet_count must be at least 1", s.Name)
	}
	if !validation.IsFinite(s.Spread) || s.Spread < 0 {
		return fmt.Errorf("weapon %s: spread must be a non-negative number", s.Name)
	}
	if !validation.IsFinite(s.Recoil.X) || !validation.IsFinite(s.Recoil.Y) {
		return fmt.Errorf("weapon %s: recoil must be finite", s.Name)
	}
	if f := s.Falloff; f != nil {
		if !validation.IsFinite(f.Start) || !validation.IsFinite(f.End) || !validation.IsFinite(f.MinScale) {
			return fmt.Errorf("weapon %s: falloff must be finite", s.Name)
		}
		if f.Start < 0 || f.End <= f.Start {
			return fmt.Errorf("weapon %s: falloff end must be past start", s.Name)
		}
		if f.MinScale < 0 || f.MinScale > 1 {
			return fmt.Errorf("weapon %s: falloff min_scale must be within [0, 1]", s.Name)
		}
	}
	return nil
}

type Catalog struct {
	specs map[protocol.WeaponType]Spec
}

func New(specs ...Spec) (*Catalog, error) {
	c := &Catalog{specs: make(map[protocol.WeaponType]Spec, len(specs))}
	for _, s := range specs {
		c.specs[s.Kind] = s
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) Validate() error {
	names := make(map[string]protocol.WeaponType, len(c.specs))
	for _, kind := range c.Kinds() {
		s := c.specs[kind]
		if err := s.Validate(); err != nil {
			return err
		}
		key := strings.ToLower(s.Name)
		if other, dup := names[key]; dup {
			return fmt.Errorf("weapon name %q used by kinds %d and %d", s.Name, other, kind)
		}
		names[key] = kind
	}
	return nil
}

func (c *Catalog) Lookup(kind protocol.WeaponType) (Spec, bool) {
	s, ok := c.specs[kind]
	return s, ok
}

func (c *Catalog) Get(kind protocol.WeaponType) (Spec, error) {
	s, ok := c.specs[kind]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
	return s, nil
}

func (c *Catalog) ByName(name string) (Spec, bool) {
	for _, s := range c.specs {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return Spec{}, false
}

func (c *Catalog) Kinds() []protocol.WeaponType {
	kinds := make([]protocol.WeaponType, 0, len(c.specs))
	for k := range c.specs {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (c *Catalog) Len() int {
	return len(c.specs)
}

type catalogFile struct {
	Weapons []Spec `toml:"weapon" yaml:"weapon"`
}

// Load reads weapon rows from a TOML or YAML file and lays them over the
// defaults. A row replaces the default row of the same kind as a whole.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var file catalogFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse catalog: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse catalog: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", ext)
	}

	specs := DefaultSpecs()
	index := make(map[protocol.WeaponType]int, len(specs))
	for i, s := range specs {
		index[s.Kind] = i
	}
	for _, s := range file.Weapons {
		if i, ok := index[s.Kind]; ok {
			specs[i] = s
			continue
		}
		index[s.Kind] = len(specs)
		specs = append(specs, s)
	}

	return New(specs...)
}
