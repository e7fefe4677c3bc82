package serialization

import (
	"bytes"
	"encoding/gob"
)

// GOBSerializer encodes arbitrary Go values with encoding/gob. Values travel as interface
// values so the concrete type survives the round trip; every concrete type must have been
// passed to gob.Register beforehand.
type GOBSerializer struct{}

func (g GOBSerializer) Serialize(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(&v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g GOBSerializer) Deserialize(data []byte) (any, error) {
	var v any
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
