package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/text/encoding/charmap"
)

const (
	MaxPlayers    = 32
	PlayerNameLen = 16

	// ammo counts travel as uint8
	MaxAmmo = 255

	// sent as connect data during the ENet handshake
	Version75 uint32 = 3
)

type PacketType uint8

const (
	PacketTypeWeaponInput    PacketType = 4
	PacketTypeSetTool        PacketType = 7
	PacketTypeExistingPlayer PacketType = 9
	PacketTypeCreatePlayer   PacketType = 12
	PacketTypePlayerLeft     PacketType = 20
	PacketTypeRestock        PacketType = 26
	PacketTypeWeaponReload   PacketType = 28
	PacketTypeChangeWeapon   PacketType = 30
)

type WeaponType uint8

const (
	WeaponTypeRifle   WeaponType = 0
	WeaponTypeSMG     WeaponType = 1
	WeaponTypeShotgun WeaponType = 2
)

func (w WeaponType) String() string {
	switch w {
	case WeaponTypeRifle:
		return "rifle"
	case WeaponTypeSMG:
		return "smg"
	case WeaponTypeShotgun:
		return "shotgun"
	default:
		return fmt.Sprintf("weapon(%d)", uint8(w))
	}
}

type ItemType uint8

const (
	ItemTypeSpade   ItemType = 0
	ItemTypeBlock   ItemType = 1
	ItemTypeGun     ItemType = 2
	ItemTypeGrenade ItemType = 3
)

type HitType uint8

const (
	HitTypeTorso HitType = 0
	HitTypeHead  HitType = 1
	HitTypeArms  HitType = 2
	HitTypeLegs  HitType = 3
	HitTypeMelee HitType = 4
)

type WeaponInput uint8

const (
	WeaponInputPrimary   WeaponInput = 1 << 0
	WeaponInputSecondary WeaponInput = 1 << 1
)

type Vector3f struct {
	X, Y, Z float32
}

type Color3b struct {
	B, G, R uint8
}

type PacketWeaponInput struct {
	PacketID    uint8
	PlayerID    uint8
	WeaponInput WeaponInput
}

type PacketSetTool struct {
	PacketID uint8
	PlayerID uint8
	Tool     ItemType
}

type PacketExistingPlayer struct {
	PacketID uint8
	PlayerID uint8
	Team     uint8
	Weapon   WeaponType
	Item     ItemType
	Kills    uint32
	Color    Color3b
	Name     [PlayerNameLen]byte
}

type PacketCreatePlayer struct {
	PacketID uint8
	PlayerID uint8
	Weapon   WeaponType
	Team     uint8
	X, Y, Z  float32
	Name     [PlayerNameLen]byte
}

type PacketPlayerLeft struct {
	PacketID uint8
	PlayerID uint8
}

type PacketRestock struct {
	PacketID uint8
	PlayerID uint8
}

// PacketWeaponReload travels both ways. Client to server it requests a
// reload; server to the reloading client it carries the confirmed ammo;
// server to everyone else it announces that the player started reloading.
type PacketWeaponReload struct {
	PacketID     uint8
	PlayerID     uint8
	MagazineAmmo uint8
	ReserveAmmo  uint8
}

type PacketChangeWeapon struct {
	PacketID uint8
	PlayerID uint8
	WeaponID WeaponType
}

func (p *PacketWeaponInput) Read(data []byte) error {
	return readFixed(data, p, "weapon input")
}

func (p *PacketSetTool) Read(data []byte) error {
	return readFixed(data, p, "set tool")
}

func (p *PacketExistingPlayer) Read(data []byte) error {
	// the name is variable length on the wire, so pad before decoding
	const fixed = 12
	if len(data) < fixed {
		return fmt.Errorf("existing player packet too small")
	}
	padded := make([]byte, fixed+PlayerNameLen)
	copy(padded, data)
	return binary.Read(bytes.NewReader(padded), binary.LittleEndian, p)
}

func (p *PacketCreatePlayer) Read(data []byte) error {
	const fixed = 16
	if len(data) < fixed {
		return fmt.Errorf("create player packet too small")
	}
	padded := make([]byte, fixed+PlayerNameLen)
	copy(padded, data)
	return binary.Read(bytes.NewReader(padded), binary.LittleEndian, p)
}

func (p *PacketPlayerLeft) Read(data []byte) error {
	return readFixed(data, p, "player left")
}

func (p *PacketRestock) Read(data []byte) error {
	return readFixed(data, p, "restock")
}

func (p *PacketWeaponReload) Read(data []byte) error {
	return readFixed(data, p, "weapon reload")
}

func (p *PacketChangeWeapon) Read(data []byte) error {
	return readFixed(data, p, "change weapon")
}

func readFixed(data []byte, packet interface{}, name string) error {
	size := binary.Size(packet)
	if size < 0 || len(data) < size {
		return fmt.Errorf("%s packet too small", name)
	}
	return binary.Read(bytes.NewReader(data[:size]), binary.LittleEndian, packet)
}

var cp437Decoder = charmap.CodePage437.NewDecoder()
var cp437Encoder = charmap.CodePage437.NewEncoder()

func StringToCP437(s string) ([]byte, error) {
	return cp437Encoder.Bytes([]byte(s))
}

func CP437ToString(b []byte) (string, error) {
	trimmed := bytes.TrimRight(b, "\x00")
	decoded, err := cp437Decoder.Bytes(trimmed)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func EncodeName(name string) ([PlayerNameLen]byte, error) {
	var out [PlayerNameLen]byte
	encoded, err := StringToCP437(name)
	if err != nil {
		return out, err
	}
	copy(out[:PlayerNameLen-1], encoded)
	return out, nil
}

func WritePacket(w io.Writer, packet interface{}) error {
	return binary.Write(w, binary.LittleEndian, packet)
}

func Marshal(packet interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := WritePacket(&buf, packet); err != nil {
		return nil, fmt.Errorf("failed to encode packet: %w", err)
	}
	return buf.Bytes(), nil
}

func ReadPacketType(data []byte) (PacketType, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("packet too small")
	}
	return PacketType(data[0]), nil
}

const (
	MagazineAmmoRifle75   = 10
	MagazineAmmoSMG75     = 30
	MagazineAmmoShotgun75 = 6

	ReserveAmmoRifle75   = 50
	ReserveAmmoSMG75     = 120
	ReserveAmmoShotgun75 = 48

	FireDelayMillisecondsRifle75   = 500
	FireDelayMillisecondsSMG75     = 100
	FireDelayMillisecondsShotgun75 = 1000

	ReloadMillisecondsRifle75   = 2500
	ReloadMillisecondsSMG75     = 2500
	ReloadMillisecondsShotgun75 = 500

	PelletQuantityRifle75   = 1
	PelletQuantitySMG75     = 1
	PelletQuantityShotgun75 = 8
)
