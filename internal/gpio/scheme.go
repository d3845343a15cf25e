package gpio

import (
	"errors"
	"fmt"
	"strings"

	"github.com/warthog618/go-gpiocdev/device/rpi"
)

// Scheme selects how pin identifiers map to chip line offsets.
type Scheme int

const (
	// Logical identifiers are line offsets (BCM numbers on a Raspberry Pi).
	Logical Scheme = iota
	// Physical identifiers are Raspberry Pi J8 header pin numbers.
	Physical
)

func (s Scheme) String() string {
	if s == Physical {
		return "physical"
	}
	return "logical"
}

// ParseScheme accepts "logical"/"bcm" and "physical"/"board".
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "logical", "bcm":
		return Logical, nil
	case "physical", "board":
		return Physical, nil
	}
	return Logical, fmt.Errorf("invalid numbering scheme %q (want logical or physical)", s)
}

// ErrInvalidPin indicates an identifier that does not map to a line.
var ErrInvalidPin = errors.New("invalid pin")

// Resolve maps a pin identifier to a line offset.
func (s Scheme) Resolve(id int) (int, error) {
	if id < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPin, id)
	}
	if s == Logical {
		return id, nil
	}
	offset, err := rpi.Pin(fmt.Sprintf("J8p%d", id))
	if err != nil {
		return 0, fmt.Errorf("%w: physical pin %d is not a GPIO", ErrInvalidPin, id)
	}
	return offset, nil
}
