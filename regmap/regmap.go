// Package regmap describes the BCM283x-style GPIO register bank layout.
//
// Word indexes are relative to the start of the mapped GPIO block. Every
// function here is pure arithmetic; nothing touches hardware.
package regmap

const (
	// FunctionSelectBase is the word index of GPFSEL0.
	FunctionSelectBase = 0
	// SetBase is the word index of GPSET0.
	SetBase = 7
	// ClearBase is the word index of GPCLR0.
	ClearBase = 10

	PinsPerSelectRegister = 10
	BitsPerField          = 3
	PinsPerBank           = 32

	FieldMask      uint32 = 0b111
	FunctionInput  uint32 = 0b000
	FunctionOutput uint32 = 0b001
)

// SelectField returns the function-select word index and the bit offset of
// the 3-bit field that controls pin.
func SelectField(pin int) (index int, shift uint) {
	index = FunctionSelectBase + pin/PinsPerSelectRegister
	shift = uint(pin%PinsPerSelectRegister) * BitsPerField
	return index, shift
}

// Bank returns which 32-pin bank pin belongs to.
func Bank(pin int) int {
	return pin / PinsPerBank
}

func SetRegister(pin int) int {
	return SetBase + Bank(pin)
}

func ClearRegister(pin int) int {
	return ClearBase + Bank(pin)
}

// Bit is the mask that addresses pin inside its bank's set, clear and level
// registers.
func Bit(pin int) uint32 {
	return 1 << uint(pin%PinsPerBank)
}

// WithFunction returns word with the field at shift replaced by fn. Other
// pins sharing the register keep their mode.
func WithFunction(word uint32, shift uint, fn uint32) uint32 {
	return (word &^ (FieldMask << shift)) | ((fn & FieldMask) << shift)
}

// Function extracts the 3-bit mode at shift.
func Function(word uint32, shift uint) uint32 {
	return (word >> shift) & FieldMask
}
