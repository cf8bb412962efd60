//go:build !linux

package gpio

import "fmt"

// The hardware backends need Linux; elsewhere only the simulation works.

func OpenRegisters(device string, base int64) (*RegisterBackend, error) {
	return nil, fmt.Errorf("registers %s@%#x: %w", device, base, ErrBackendUnsupported)
}

func OpenChardev(path, consumer string) (Backend, error) {
	return nil, fmt.Errorf("chardev %s: %w", path, ErrBackendUnsupported)
}

func OpenRpio() (Backend, error) {
	return nil, fmt.Errorf("rpio: %w", ErrBackendUnsupported)
}
