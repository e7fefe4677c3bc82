// Package binx provides a compact binary encoding for Go value graphs.
//
// A Writer walks a value depth-first and emits one tag byte plus a fixed payload per
// node; a Reader consumes the bytes in lock-step and rebuilds the graph. There is no
// schema: types are named on the wire and resolved by name when reading.
//
// # Wire format
//
// A frame is START, exactly one value, END. Integers are fixed-width little-endian and
// strings are a 4-byte length followed by UTF-8 bytes.
//
//	START END                 no payload
//	NULL                      no payload
//	BYTE                      1 byte
//	SHORT, CHAR               2 bytes
//	INT, FLOAT                4 bytes
//	LONG, DOUBLE              8 bytes
//	BOOLEAN                   1 byte, 1 or 0
//	STRING                    length + bytes
//	ENUM                      type name + constant name
//	ARRAY                     element type name + count + count values
//	FSERIALIZABLE             type name + mapping value
//	OBJECT                    type name + count + count (FIELD + name + value)
//	RESERVED                  type name + codec payload
//	SERIALIZABLE              byte array value
//
// # Type mapping
//
// Only exact dynamic types map to primitives: uint8 is byte, int16 short, int32 int,
// int64 long, float32 float, float64 double, bool boolean, Char char and string string.
// Anything else must be made known first:
//
//	binx.RegisterType("point", Point{})            // field walk, decoded as Point
//	binx.RegisterType("account", &Account{})       // field walk, decoded as *Account
//	binx.RegisterEnum("color", map[string]Color{"RED": Red, "GREEN": Green})
//	binx.RegisterOpaque(Legacy{})                  // opaque gob fallback
//
// Struct fields tagged `binx:"-"` are transient; `binx:"name"` renames a field on the wire.
// Types implementing Flattener are written as a mapping and rebuilt with a Reconstructor
// or a WithReconstruct factory. Per-type codecs go into a Registry passed with WithRegistry.
//
// # Quick start
//
//	data, err := binx.Marshal(Point{X: 1, Y: 2})
//	if err != nil {
//	    return err
//	}
//	p, err := binx.UnmarshalAs[Point](data)
//
// The binx-gen command generates reflection-free RegisterComposite calls for structs
// marked with a //binx:register comment.
package binx
