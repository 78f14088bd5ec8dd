package datatypes

import (
	"fmt"
	"sort"
)

// EnumItem is a single named value of an Enum.
type EnumItem struct {
	EnumType string
	Name     string
	Value    int
}

func (e EnumItem) String() string {
	return fmt.Sprintf("Enum.%s.%s", e.EnumType, e.Name)
}

// Enum is an ordered set of items.
type Enum struct {
	Name  string
	items []EnumItem
}

// Items returns the items in value order.
func (e *Enum) Items() []EnumItem {
	out := make([]EnumItem, len(e.items))
	copy(out, e.items)
	return out
}

func (e *Enum) Item(name string) (EnumItem, bool) {
	for _, it := range e.items {
		if it.Name == name {
			return it, true
		}
	}
	return EnumItem{}, false
}

func (e *Enum) FromValue(v int) (EnumItem, bool) {
	for _, it := range e.items {
		if it.Value == v {
			return it, true
		}
	}
	return EnumItem{}, false
}

// EnumRegistry holds every enum exposed to scripts as Enum.<Name>.
type EnumRegistry struct {
	enums map[string]*Enum
}

func NewEnumRegistry() *EnumRegistry {
	return &EnumRegistry{enums: make(map[string]*Enum)}
}

// Register adds an enum whose items take consecutive values starting at
// start, in the order given.
func (r *EnumRegistry) Register(name string, start int, names ...string) *Enum {
	if _, exists := r.enums[name]; exists {
		panic(fmt.Sprintf("enum %q already registered", name))
	}
	e := &Enum{Name: name, items: make([]EnumItem, len(names))}
	for i, n := range names {
		e.items[i] = EnumItem{EnumType: name, Name: n, Value: start + i}
	}
	r.enums[name] = e
	return e
}

func (r *EnumRegistry) Get(name string) (*Enum, bool) {
	e, ok := r.enums[name]
	return e, ok
}

// Names returns all enum names sorted.
func (r *EnumRegistry) Names() []string {
	names := make([]string, 0, len(r.enums))
	for n := range r.enums {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// PartType item names in value order.
var PartTypeNames = []string{"Ball", "Block", "Cylinder", "Wedge", "CornerWedge"}

// DefaultEnums returns a registry with the engine's built-in enums.
func DefaultEnums() *EnumRegistry {
	r := NewEnumRegistry()
	r.Register("PartType", 0, PartTypeNames...)
	return r
}
