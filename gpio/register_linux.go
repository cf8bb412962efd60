//go:build linux

package gpio

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// registerPageSize is the span mapped for the GPIO block; every register
// the backend touches lives in the first page.
const registerPageSize = 4 * 1024

// mapper maps length bytes of fd at offset and returns the unmap for it.
type mapper func(fd int, offset int64, length int) (mapping []byte, unmap func() error, err error)

func mmapShared(fd int, offset int64, length int) ([]byte, func() error, error) {
	mapping, err := unix.Mmap(fd, offset, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return mapping, func() error { return unix.Munmap(mapping) }, nil
}

// OpenRegisters maps the GPIO register page at base from device. For
// /dev/gpiomem base is 0; for /dev/mem it is the physical address of the
// block, which differs per SoC.
func OpenRegisters(device string, base int64) (*RegisterBackend, error) {
	return openRegisters(device, base, mmapShared)
}

// openRegisters only reports ErrPermissionDenied when the device itself
// refuses to open. A refused mapping (EPERM under CONFIG_STRICT_DEVMEM for
// a range the kernel guards) is specific to base, so the next base may
// still work.
func openRegisters(device string, base int64, mmap mapper) (*RegisterBackend, error) {
	file, err := os.OpenFile(device, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, classify("open "+device, err)
	}
	// The mapping outlives the descriptor.
	defer file.Close()

	mapping, unmap, err := mmap(int(file.Fd()), base, registerPageSize)
	if err != nil {
		return nil, fmt.Errorf("mmap %s@%#x: %w: %w", device, base, ErrResourceUnavailable, err)
	}

	regs := unsafe.Slice((*uint32)(unsafe.Pointer(&mapping[0])), len(mapping)/4)

	b, err := NewRegisterBackend(fmt.Sprintf("%s@%#x", device, base), regs, unmap)
	if err != nil {
		unmap()
		return nil, err
	}
	return b, nil
}
