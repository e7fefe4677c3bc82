package serialization

// Serializer turns a self-contained Go value into an opaque byte payload and back.
// Implementations must preserve the dynamic type of the value.
type Serializer interface {
	Serialize(v any) ([]byte, error)

	// Deserialize rebuilds the value from a payload produced by Serialize.
	Deserialize(data []byte) (any, error)
}
