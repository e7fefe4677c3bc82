package binx

import (
	"errors"
	"fmt"
	"reflect"
)

type point struct {
	X int32
	Y int32
}

type account struct {
	ID     int64
	Owner  string `binx:"owner"`
	Secret string `binx:"-"`
	Tags   []string
	Parent *point
	scope  int32
}

type holder struct {
	Vals  [3]int16
	P     *point
	Q     point
	Extra any
}

// route holds pointers to a type registered in value form.
type route struct {
	Name  string
	Stops []*point
}

type color int16

const (
	red color = iota
	green
	blue
)

// money describes itself as a mapping.
type money struct {
	Cents    int64
	Currency string
}

func (m money) Flatten() map[string]any {
	return map[string]any{"cents": m.Cents, "currency": m.Currency}
}

func (m *money) Reconstruct(fields map[string]any) error {
	cents, err := As[int64](fields["cents"])
	if err != nil {
		return err
	}
	currency, err := As[string](fields["currency"])
	if err != nil {
		return err
	}
	m.Cents, m.Currency = cents, currency
	return nil
}

// lazy opts out of the mapping form by returning nil.
type lazy struct {
	Name string
}

func (l *lazy) Flatten() map[string]any { return nil }

// ticket is rebuilt through a registered factory instead of a method.
type ticket struct {
	code string
}

func (t ticket) Flatten() map[string]any { return map[string]any{"code": t.code} }

type gpsFix struct {
	Lat, Lon float64
	Label    string
}

type celsius float64

type tagged string

type legacy struct {
	A int
	B string
}

type unsupported struct{}

func init() {
	MustRegisterType("point", point{})
	MustRegisterType("account", &account{})
	MustRegisterType("holder", holder{})
	MustRegisterType("route", route{})
	MustRegisterType("money", money{})
	MustRegisterType("lazy", &lazy{})
	MustRegisterType("ticket", ticket{}, WithReconstruct(func(fields map[string]any) (any, error) {
		code, ok := fields["code"].(string)
		if !ok {
			return nil, errors.New("ticket code missing")
		}
		return ticket{code: code}, nil
	}))
	MustRegisterType("tagged", tagged(""))

	if err := RegisterEnum("color", map[string]color{"RED": red, "GREEN": green, "BLUE": blue}); err != nil {
		panic(err)
	}
	if err := RegisterComposite("gpsfix",
		Field[gpsFix]{
			Name: "lat",
			Get:  func(g *gpsFix) any { return g.Lat },
			Set: func(g *gpsFix, v any) (err error) {
				g.Lat, err = As[float64](v)
				return err
			},
		},
		Field[gpsFix]{
			Name: "lon",
			Get:  func(g *gpsFix) any { return g.Lon },
			Set: func(g *gpsFix, v any) (err error) {
				g.Lon, err = As[float64](v)
				return err
			},
		},
		Field[gpsFix]{
			Name: "label",
			Get:  func(g *gpsFix) any { return g.Label },
			Set: func(g *gpsFix, v any) (err error) {
				g.Label, err = As[string](v)
				return err
			},
		},
	); err != nil {
		panic(err)
	}
	if err := RegisterOpaque(legacy{}); err != nil {
		panic(err)
	}
}

func celsiusRegistry() *Registry {
	return NewRegistry().MustRegister("celsius", celsius(0), Codec{
		Encode: func(v any, w *Writer) error {
			return w.WriteDouble(float64(v.(celsius)))
		},
		Decode: func(t reflect.Type, r *Reader) (any, error) {
			d, err := r.ReadDouble()
			if err != nil {
				return nil, err
			}
			if d < -273.15 {
				return nil, fmt.Errorf("%v below absolute zero", d)
			}
			return celsius(d), nil
		},
	})
}

// frame wraps value bytes in START/END.
func frame(value ...byte) []byte {
	out := []byte{byte(TagStart)}
	out = append(out, value...)
	return append(out, byte(TagEnd))
}

// rawString is the 4-byte length + bytes payload of s.
func rawString(s string) []byte {
	n := len(s)
	return append([]byte{byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24)}, s...)
}

func rawInt(v int32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
