package engine

import (
	"fmt"
	"slices"

	"blockengine/internal/datatypes"
)

// Attribute is a named, typed value stored on an instance. Values are one
// of bool, float64, string, datatypes.Vector3 or datatypes.Color3.
type Attribute struct {
	Name  string
	Value any
}

// normalizeAttribute folds the numeric kinds into float64 and rejects
// anything that is not an attribute type.
func normalizeAttribute(v any) (any, error) {
	switch x := v.(type) {
	case bool, float64, string, datatypes.Vector3, datatypes.Color3:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrAttributeType, v)
	}
}

// SetAttribute stores value under name, keeping first-insertion order.
// A nil value removes the attribute. AttributeChanged fires with the name
// whenever the stored value changes.
func (i *Instance) SetAttribute(name string, value any) error {
	if name == "" {
		return ErrAttributeName
	}
	idx := slices.IndexFunc(i.attributes, func(a Attribute) bool { return a.Name == name })
	if value == nil {
		if idx < 0 {
			return nil
		}
		i.attributes = slices.Delete(i.attributes, idx, idx+1)
		i.AttributeChanged.Fire(name)
		return nil
	}

	v, err := normalizeAttribute(value)
	if err != nil {
		return fmt.Errorf("set attribute %q: %w", name, err)
	}
	if idx >= 0 {
		if i.attributes[idx].Value == v {
			return nil
		}
		i.attributes[idx].Value = v
	} else {
		i.attributes = append(i.attributes, Attribute{Name: name, Value: v})
	}
	i.AttributeChanged.Fire(name)
	return nil
}

// GetAttribute returns the stored value, or nil and false.
func (i *Instance) GetAttribute(name string) (any, bool) {
	for _, a := range i.attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return nil, false
}

// GetAttributes returns a copy of all attributes in insertion order.
func (i *Instance) GetAttributes() []Attribute {
	return slices.Clone(i.attributes)
}

func (i *Instance) AddTag(tag string) {
	if tag == "" || slices.Contains(i.tags, tag) {
		return
	}
	i.tags = append(i.tags, tag)
}

func (i *Instance) RemoveTag(tag string) {
	if idx := slices.Index(i.tags, tag); idx >= 0 {
		i.tags = slices.Delete(i.tags, idx, idx+1)
	}
}

func (i *Instance) HasTag(tag string) bool {
	return slices.Contains(i.tags, tag)
}

func (i *Instance) GetTags() []string {
	return slices.Clone(i.tags)
}
