package catalog

import (
	"math"

	"github.com/siohaza/weaponsim/internal/protocol"
)

// DefaultSpecs returns the v0.75 rifle, SMG and shotgun rows.
func DefaultSpecs() []Spec {
	return []Spec{
		{
			Kind:            protocol.WeaponTypeRifle,
			Name:            "rifle",
			FireDelay:       protocol.FireDelayMillisecondsRifle75 / 1000.0,
			ClipSize:        protocol.MagazineAmmoRifle75,
			MaxStock:        protocol.ReserveAmmoRifle75,
			ReloadTime:      protocol.ReloadMillisecondsRifle75 / 1000.0,
			EjectsBrass:     true,
			EjectBrassDelay: 0.5,
			PelletCount:     protocol.PelletQuantityRifle75,
			Recoil:          Recoil{X: 0.0001, Y: 0.05},
			Spread:          0.006,
			BaseDamage:      DamageTable{Head: 100, Torso: 49, Arms: 33, Legs: 33},
		},
		{
			Kind:            protocol.WeaponTypeSMG,
			Name:            "smg",
			FireDelay:       protocol.FireDelayMillisecondsSMG75 / 1000.0,
			ClipSize:        protocol.MagazineAmmoSMG75,
			MaxStock:        protocol.ReserveAmmoSMG75,
			ReloadTime:      protocol.ReloadMillisecondsSMG75 / 1000.0,
			EjectsBrass:     true,
			EjectBrassDelay: 0.1,
			PelletCount:     protocol.PelletQuantitySMG75,
			Recoil:          Recoil{X: 0.00005, Y: 0.0125},
			Spread:          0.012,
			BaseDamage:      DamageTable{Head: 75, Torso: 29, Arms: 18, Legs: 18},
		},
		{
			Kind:                protocol.WeaponTypeShotgun,
			Name:                "shotgun",
			FireDelay:           protocol.FireDelayMillisecondsShotgun75 / 1000.0,
			ClipSize:            protocol.MagazineAmmoShotgun75,
			MaxStock:            protocol.ReserveAmmoShotgun75,
			ReloadTime:          protocol.ReloadMillisecondsShotgun75 / 1000.0,
			EjectsBrass:         true,
			EjectBrassDelay:     0.4,
			SlowReload:          true,
			InterruptibleReload: true,
			PelletCount:         protocol.PelletQuantityShotgun75,
			Recoil:              Recoil{X: 0.0002, Y: 0.1},
			Spread:              0.024,
			BaseDamage:          DamageTable{Head: 37, Torso: 27, Arms: 16, Legs: 16},
		},
	}
}

func Default() *Catalog {
	c, err := New(DefaultSpecs()...)
	if err != nil {
		panic("catalog: invalid default rows: " + err.Error())
	}
	return c
}

// Damage returns the damage of a single pellet for the given hit at distance.
func (s Spec) Damage(hit protocol.HitType, distance float64) int {
	var base int
	switch hit {
	case protocol.HitTypeHead:
		base = s.BaseDamage.Head
	case protocol.HitTypeTorso:
		base = s.BaseDamage.Torso
	case protocol.HitTypeArms:
		base = s.BaseDamage.Arms
	case protocol.HitTypeLegs:
		base = s.BaseDamage.Legs
	default:
		return 0
	}

	return int(math.Round(float64(base) * s.falloffScale(distance)))
}

func (s Spec) falloffScale(distance float64) float64 {
	f := s.Falloff
	if f == nil || math.IsNaN(distance) || distance <= f.Start {
		return 1
	}
	if distance >= f.End {
		return f.MinScale
	}
	t := (distance - f.Start) / (f.End - f.Start)
	return 1 + t*(f.MinScale-1)
}
