package deepviewrt

// TensorType identifies the element type of a tensor's storage. The
// values match the runtime's type tags and must not be reordered.
type TensorType int32

const (
	TypeRaw TensorType = iota
	TypeString
	TypeI8
	TypeU8
	TypeI16
	TypeU16
	TypeI32
	TypeU32
	TypeI64
	TypeU64
	TypeF16
	TypeF32
	TypeF64
)

// TensorTypeFromID maps a raw runtime type tag to a TensorType. Tags
// outside the known range fail rather than alias another type.
func TensorTypeFromID(id int32) (TensorType, error) {
	if id < int32(TypeRaw) || id > int32(TypeF64) {
		return 0, wrapperErrf("unknown tensor type %d", id)
	}
	return TensorType(id), nil
}

var typeNames = [...]string{
	TypeRaw:    "raw",
	TypeString: "string",
	TypeI8:     "int8",
	TypeU8:     "uint8",
	TypeI16:    "int16",
	TypeU16:    "uint16",
	TypeI32:    "int32",
	TypeU32:    "uint32",
	TypeI64:    "int64",
	TypeU64:    "uint64",
	TypeF16:    "float16",
	TypeF32:    "float32",
	TypeF64:    "float64",
}

func (t TensorType) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "invalid"
}

// Size returns the width of one element in bytes. Raw and string tensors
// are byte streams and report 1.
func (t TensorType) Size() int {
	switch t {
	case TypeRaw, TypeString, TypeI8, TypeU8:
		return 1
	case TypeI16, TypeU16, TypeF16:
		return 2
	case TypeI32, TypeU32, TypeF32:
		return 4
	case TypeI64, TypeU64, TypeF64:
		return 8
	}
	return 0
}
