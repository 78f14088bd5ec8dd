package engine

// RootClass is the class every instance IsA.
const RootClass = "Object"

// Object is the minimal identity every scriptable value carries: an
// immutable class name, a mutable display name, and a Changed signal fired
// with the name of a property after it is written.
type Object interface {
	ClassName() string
	Name() string
	SetName(name string)
	IsA(className string) bool
	ChangedSignal() *Signal
}

// Hierarchy resolves the class lineage used by IsA. The reflection registry
// implements it once classes are bound.
type Hierarchy interface {
	// Lineage returns className followed by its ancestors, nearest first.
	Lineage(className string) []string
}

type defaultHierarchy struct{}

func (defaultHierarchy) Lineage(className string) []string {
	if className == "Instance" {
		return []string{"Instance", RootClass}
	}
	return []string{className, "Instance", RootClass}
}

var _ Object = (*Instance)(nil)
