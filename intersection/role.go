// Package intersection sequences the lights of a two-street intersection.
package intersection

import (
	"errors"
	"fmt"
	"strings"

	"gregoryjjb/stoplight/gpio"
)

var ErrInvalidPinout = errors.New("invalid pinout")

type Street int

const (
	StreetA Street = iota
	StreetB
)

var streetLabels = [...]string{"Street A (N-S)", "Street B (E-W)"}

func (s Street) String() string {
	if s < 0 || int(s) >= len(streetLabels) {
		return fmt.Sprintf("Street(%d)", int(s))
	}
	return streetLabels[s]
}

type Color int

const (
	Red Color = iota
	Yellow
	Green
)

var colorNames = [...]string{"RED", "YELLOW", "GREEN"}

func (c Color) String() string {
	if c < 0 || int(c) >= len(colorNames) {
		return fmt.Sprintf("Color(%d)", int(c))
	}
	return colorNames[c]
}

func (c Color) MarshalText() ([]byte, error) {
	if c < 0 || int(c) >= len(colorNames) {
		return nil, fmt.Errorf("unknown color %d", int(c))
	}
	return []byte(strings.ToLower(colorNames[c])), nil
}

func (c *Color) UnmarshalText(text []byte) error {
	for i, name := range colorNames {
		if strings.EqualFold(name, string(text)) {
			*c = Color(i)
			return nil
		}
	}
	return fmt.Errorf("unknown color %q", text)
}

// Role is one physical lamp: a color on a street.
type Role int

const (
	StreetARed Role = iota
	StreetAYellow
	StreetAGreen
	StreetBRed
	StreetBYellow
	StreetBGreen

	roleCount
)

func Roles() []Role {
	roles := make([]Role, 0, roleCount)
	for r := Role(0); r < roleCount; r++ {
		roles = append(roles, r)
	}
	return roles
}

func RoleFor(s Street, c Color) Role {
	return Role(int(s)*len(colorNames) + int(c))
}

func (r Role) Street() Street {
	return Street(int(r) / len(colorNames))
}

func (r Role) Color() Color {
	return Color(int(r) % len(colorNames))
}

func (r Role) String() string {
	if r < 0 || r >= roleCount {
		return fmt.Sprintf("Role(%d)", int(r))
	}
	return fmt.Sprintf("%s %s", r.Street(), r.Color())
}

// Pinout binds every role to its own pin. It is fixed once built.
type Pinout struct {
	pins [roleCount]gpio.Pin
}

// DefaultPinout is the reference wiring: street A on GPIO 17/27/22 and
// street B on GPIO 23/24/25 (red/yellow/green).
func DefaultPinout() Pinout {
	return Pinout{pins: [roleCount]gpio.Pin{17, 27, 22, 23, 24, 25}}
}

// NewPinout requires all six roles, each on a distinct valid pin.
func NewPinout(bindings map[Role]gpio.Pin) (Pinout, error) {
	var p Pinout
	seen := make(map[gpio.Pin]Role, roleCount)

	for _, r := range Roles() {
		pin, ok := bindings[r]
		if !ok {
			return Pinout{}, fmt.Errorf("%w: no pin for %s", ErrInvalidPinout, r)
		}
		if !pin.Valid() {
			return Pinout{}, fmt.Errorf("%w: %s: %w: %d", ErrInvalidPinout, r, gpio.ErrInvalidPin, pin)
		}
		if other, dup := seen[pin]; dup {
			return Pinout{}, fmt.Errorf("%w: pin %d bound to both %s and %s", ErrInvalidPinout, pin, other, r)
		}
		seen[pin] = r
		p.pins[r] = pin
	}
	for r := range bindings {
		if r < 0 || r >= roleCount {
			return Pinout{}, fmt.Errorf("%w: unknown %s", ErrInvalidPinout, r)
		}
	}

	return p, nil
}

func (p Pinout) Pin(r Role) gpio.Pin {
	return p.pins[r]
}

// Pins lists the bound pins in role order.
func (p Pinout) Pins() []gpio.Pin {
	return append([]gpio.Pin(nil), p.pins[:]...)
}

func (p Pinout) Mask(roles ...Role) gpio.Mask {
	var m gpio.Mask
	for _, r := range roles {
		m |= gpio.MaskOf(p.pins[r])
	}
	return m
}

func (p Pinout) All() gpio.Mask {
	return p.Mask(Roles()...)
}
