package binx_test

import (
	"fmt"

	"github.com/hengadev/binx"
)

type Coordinate struct {
	Lat, Lng float64
	Label    string `binx:"name"`
	cached   bool
}

func ExampleMarshal() {
	data, err := binx.Marshal(int32(42))
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(data)
	// Output: [1 6 42 0 0 0 2]
}

func ExampleUnmarshal() {
	data, _ := binx.Marshal([]string{"a", "b"})
	v, err := binx.Unmarshal(data)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("%T %v\n", v, v)
	// Output: []string [a b]
}

func ExampleRegisterType() {
	if err := binx.RegisterType("example.coordinate", Coordinate{}); err != nil {
		fmt.Println(err)
		return
	}
	data, _ := binx.Marshal(Coordinate{Lat: 48.85, Lng: 2.35, Label: "Paris", cached: true})
	c, err := binx.UnmarshalAs[Coordinate](data)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(c.Label, c.Lat, c.Lng, c.cached)
	// Output: Paris 48.85 2.35 false
}

func ExampleNewWriter() {
	w, _ := binx.NewWriter()
	_ = w.Write("first")
	_ = w.Write(int64(2))

	r, _ := binx.NewReader(w.Bytes())
	for r.More() {
		v, err := r.Read()
		if err != nil {
			fmt.Println(err)
			return
		}
		fmt.Println(v)
	}
	// Output:
	// first
	// 2
}
