package binx

import "fmt"

// Tag is the single byte that precedes every value in a frame.
type Tag byte

const (
	TagStart         Tag = 0x01
	TagEnd           Tag = 0x02
	TagNull          Tag = 0x03
	TagByte          Tag = 0x04
	TagShort         Tag = 0x05
	TagInt           Tag = 0x06
	TagLong          Tag = 0x07
	TagFloat         Tag = 0x08
	TagDouble        Tag = 0x09
	TagBoolean       Tag = 0x0A
	TagChar          Tag = 0x0B
	TagString        Tag = 0x0C
	TagEnum          Tag = 0x0D
	TagArray         Tag = 0x0E
	TagFSerializable Tag = 0x0F
	TagObject        Tag = 0x10
	TagReserved      Tag = 0x11
	TagSerializable  Tag = 0x12
	TagField         Tag = 0x13
)

var tagNames = [...]string{
	TagStart:         "START",
	TagEnd:           "END",
	TagNull:          "NULL",
	TagByte:          "BYTE",
	TagShort:         "SHORT",
	TagInt:           "INT",
	TagLong:          "LONG",
	TagFloat:         "FLOAT",
	TagDouble:        "DOUBLE",
	TagBoolean:       "BOOLEAN",
	TagChar:          "CHAR",
	TagString:        "STRING",
	TagEnum:          "ENUM",
	TagArray:         "ARRAY",
	TagFSerializable: "FSERIALIZABLE",
	TagObject:        "OBJECT",
	TagReserved:      "RESERVED",
	TagSerializable:  "SERIALIZABLE",
	TagField:         "FIELD",
}

// Valid reports whether t is one of the defined tags.
func (t Tag) Valid() bool {
	return t >= TagStart && t <= TagField
}

func (t Tag) String() string {
	if t.Valid() {
		return tagNames[t]
	}
	return fmt.Sprintf("Tag(0x%02x)", byte(t))
}
