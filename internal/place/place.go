// Package place saves and loads an instance tree as a JSON document. It
// reads and writes properties only through the bound class table, so any
// class registered with the reflection registry round-trips without
// special cases.
package place

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/google/uuid"

	"blockengine/internal/classes"
	"blockengine/internal/datatypes"
	"blockengine/internal/engine"
	"blockengine/internal/reflection"
)

const (
	EngineName = "BlockEngine"
	Version    = "0.1.0"
)

var ErrIncompatible = errors.New("incompatible place file")

// --- JSON types ---

type Document struct {
	Engine  string `json:"engine"`
	Version string `json:"version"`
	Root    Node   `json:"root"`
}

type Node struct {
	ClassName  string           `json:"className"`
	Name       string           `json:"name"`
	DebugID    string           `json:"debugId,omitempty"`
	Properties map[string]Value `json:"properties,omitempty"`
	Attributes []AttributeDef   `json:"attributes,omitempty"`
	Tags       []string         `json:"tags,omitempty"`
	Children   []Node           `json:"children,omitempty"`
}

type AttributeDef struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// skipped are properties carried elsewhere in a node or implied by it.
var skipped = map[string]bool{
	"Name":       true,
	"Parent":     true,
	"Archivable": true,
}

// --- Saving ---

// Save captures root and its Archivable descendants.
func Save(cs *reflection.Classes, root *engine.Instance) (*Document, error) {
	n, err := saveNode(cs, root)
	if err != nil {
		return nil, err
	}
	return &Document{Engine: EngineName, Version: Version, Root: n}, nil
}

func saveNode(cs *reflection.Classes, inst *engine.Instance) (Node, error) {
	c, err := cs.ClassOf(inst)
	if err != nil {
		return Node{}, err
	}
	n := Node{
		ClassName: inst.ClassName(),
		Name:      inst.Name(),
		DebugID:   inst.DebugID().String(),
		Tags:      inst.GetTags(),
	}
	for _, p := range c.Properties() {
		if p.ReadOnly() || skipped[p.Name] {
			continue
		}
		v, err := p.Get(inst)
		if err != nil {
			return Node{}, fmt.Errorf("save %s.%s: %w", c.Name, p.Name, err)
		}
		val, ok := encode(v)
		if !ok {
			continue
		}
		if n.Properties == nil {
			n.Properties = make(map[string]Value)
		}
		n.Properties[p.Name] = val
	}
	for _, a := range inst.GetAttributes() {
		if val, ok := encode(a.Value); ok {
			n.Attributes = append(n.Attributes, AttributeDef{Name: a.Name, Value: val})
		}
	}
	for _, child := range inst.GetChildren() {
		if !child.Archivable() {
			continue
		}
		cn, err := saveNode(cs, child)
		if err != nil {
			return Node{}, err
		}
		n.Children = append(n.Children, cn)
	}
	return n, nil
}

func Write(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func SaveFile(path string, cs *reflection.Classes, root *engine.Instance) error {
	doc, err := Save(cs, root)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write place: %w", err)
	}
	if err := Write(f, doc); err != nil {
		f.Close()
		return fmt.Errorf("write place: %w", err)
	}
	return f.Close()
}

// --- Loading ---

func Read(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse place: %w", err)
	}
	if err := checkVersion(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func checkVersion(doc *Document) error {
	if doc.Engine != EngineName {
		return fmt.Errorf("%w: engine %q", ErrIncompatible, doc.Engine)
	}
	want, _, _ := strings.Cut(Version, ".")
	got, _, _ := strings.Cut(doc.Version, ".")
	if got != want {
		return fmt.Errorf("%w: version %q", ErrIncompatible, doc.Version)
	}
	return nil
}

// Loader rebuilds a document under an existing DataModel.
type Loader struct {
	Classes *reflection.Classes
	Enums   *datatypes.EnumRegistry
}

// Load applies the document root to dm and recreates its children. Service
// nodes reuse the DataModel's existing services.
func (l *Loader) Load(doc *Document, dm *engine.Instance) error {
	if err := checkVersion(doc); err != nil {
		return err
	}
	if doc.Root.ClassName != dm.ClassName() {
		return fmt.Errorf("%w: root is %s, want %s", ErrIncompatible, doc.Root.ClassName, dm.ClassName())
	}
	if err := l.apply(&doc.Root, dm); err != nil {
		return err
	}
	return l.loadChildren(&doc.Root, dm)
}

func (l *Loader) LoadFile(path string, dm *engine.Instance) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read place: %w", err)
	}
	defer f.Close()
	doc, err := Read(f)
	if err != nil {
		return err
	}
	return l.Load(doc, dm)
}

func (l *Loader) loadChildren(n *Node, parent *engine.Instance) error {
	for i := range n.Children {
		cn := &n.Children[i]
		inst, err := l.instance(cn, parent)
		if err != nil {
			return err
		}
		err = l.apply(cn, inst)
		if err == nil {
			err = inst.SetParent(parent)
		}
		if err != nil {
			if !classes.IsService(cn.ClassName) {
				inst.Destroy()
			}
			return err
		}
		if err := l.loadChildren(cn, inst); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) instance(n *Node, parent *engine.Instance) (*engine.Instance, error) {
	if classes.IsService(n.ClassName) {
		if !parent.IsA("ServiceProvider") {
			return nil, fmt.Errorf("service %s outside a DataModel", n.ClassName)
		}
		return classes.GetService(parent, n.ClassName)
	}
	return l.Classes.Construct(parent.World(), n.ClassName)
}

func (l *Loader) apply(n *Node, inst *engine.Instance) error {
	inst.SetName(n.Name)
	if n.DebugID != "" {
		if id, err := uuid.Parse(n.DebugID); err == nil {
			inst.SetDebugID(id)
		}
	}
	// Sorted so that Changed fires in the same order on every load.
	for _, name := range slices.Sorted(maps.Keys(n.Properties)) {
		raw := n.Properties[name]
		v, err := decode(raw, l.Enums)
		if err != nil {
			return fmt.Errorf("load %s.%s: %w", n.ClassName, name, err)
		}
		if err := l.Classes.Set(inst, name, v); err != nil {
			return fmt.Errorf("load %s: %w", n.Name, err)
		}
	}
	for _, a := range n.Attributes {
		v, err := decode(a.Value, l.Enums)
		if err != nil {
			return fmt.Errorf("load %s attribute %s: %w", n.Name, a.Name, err)
		}
		if err := inst.SetAttribute(a.Name, v); err != nil {
			return err
		}
	}
	for _, tag := range n.Tags {
		inst.AddTag(tag)
	}
	return nil
}
