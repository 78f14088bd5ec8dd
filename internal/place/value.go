package place

import (
	"encoding/json"
	"fmt"
	"strings"

	rl "github.com/gen2brain/raylib-go/raylib"

	"blockengine/internal/datatypes"
)

// Value is a typed property or attribute value.
type Value struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// --- Color mapping ---

var colorByName = map[string]rl.Color{
	"Red":       rl.Red,
	"Blue":      rl.Blue,
	"Green":     rl.Green,
	"Purple":    rl.Purple,
	"Orange":    rl.Orange,
	"Yellow":    rl.Yellow,
	"Pink":      rl.Pink,
	"SkyBlue":   rl.SkyBlue,
	"Lime":      rl.Lime,
	"Magenta":   rl.Magenta,
	"White":     rl.White,
	"LightGray": rl.LightGray,
	"Gray":      rl.Gray,
	"DarkGray":  rl.DarkGray,
	"Black":     rl.Black,
	"Brown":     rl.Brown,
	"Beige":     rl.Beige,
	"Maroon":    rl.Maroon,
	"Gold":      rl.Gold,
}

var nameByColor map[rl.Color]string

func init() {
	nameByColor = make(map[rl.Color]string, len(colorByName))
	for name, c := range colorByName {
		nameByColor[c] = name
	}
}

// colorName writes a palette name when the color has one, hex otherwise.
func colorName(c datatypes.Color3) string {
	rc := c.RL(1)
	if name, ok := nameByColor[rc]; ok {
		return name
	}
	return fmt.Sprintf("#%02x%02x%02x", rc.R, rc.G, rc.B)
}

func lookupColor(s string) (datatypes.Color3, error) {
	if c, ok := colorByName[s]; ok {
		return datatypes.FromRGB(int(c.R), int(c.G), int(c.B)), nil
	}
	var r, g, b int
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return datatypes.Color3{}, fmt.Errorf("bad color %q", s)
	}
	return datatypes.FromRGB(r, g, b), nil
}

// encode reports false for values a place cannot hold.
func encode(v any) (Value, bool) {
	var (
		typ string
		raw any
	)
	switch x := v.(type) {
	case bool:
		typ, raw = "bool", x
	case float64:
		typ, raw = "number", x
	case string:
		typ, raw = "string", x
	case datatypes.Vector3:
		typ, raw = "Vector3", [3]float32{x.X, x.Y, x.Z}
	case datatypes.Color3:
		typ, raw = "Color3", colorName(x)
	case datatypes.EnumItem:
		typ, raw = "EnumItem", x.EnumType+"."+x.Name
	default:
		return Value{}, false
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return Value{}, false
	}
	return Value{Type: typ, Value: b}, true
}

func decode(v Value, enums *datatypes.EnumRegistry) (any, error) {
	switch v.Type {
	case "bool":
		var b bool
		err := json.Unmarshal(v.Value, &b)
		return b, err
	case "number":
		var f float64
		err := json.Unmarshal(v.Value, &f)
		return f, err
	case "string":
		var s string
		err := json.Unmarshal(v.Value, &s)
		return s, err
	case "Vector3":
		var a [3]float32
		if err := json.Unmarshal(v.Value, &a); err != nil {
			return nil, err
		}
		return datatypes.NewVector3(a[0], a[1], a[2]), nil
	case "Color3":
		var s string
		if err := json.Unmarshal(v.Value, &s); err != nil {
			return nil, err
		}
		return lookupColor(s)
	case "EnumItem":
		var s string
		if err := json.Unmarshal(v.Value, &s); err != nil {
			return nil, err
		}
		enumName, itemName, _ := strings.Cut(s, ".")
		e, ok := enums.Get(enumName)
		if !ok {
			return nil, fmt.Errorf("unknown enum %q", enumName)
		}
		it, ok := e.Item(itemName)
		if !ok {
			return nil, fmt.Errorf("unknown enum item %q", s)
		}
		return it, nil
	default:
		return nil, fmt.Errorf("unknown value type %q", v.Type)
	}
}
