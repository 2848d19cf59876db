package mapping

import "reflect"

// OriginalValue is one entry of the snapshot taken when an instance is
// materialized.
type OriginalValue struct {
	Property string
	Value    any
}

// OriginalValuesTracker is implemented by instances that want the values
// they were loaded with, in property order.
type OriginalValuesTracker interface {
	SetOriginalValues(values []OriginalValue)
}

// Tracking implements OriginalValuesTracker and can be embedded.
type Tracking struct {
	original []OriginalValue
}

// SetOriginalValues records the snapshot taken at materialization.
func (t *Tracking) SetOriginalValues(values []OriginalValue) {
	t.original = values
}

// OriginalValues returns the snapshot taken at load time.
func (t *Tracking) OriginalValues() []OriginalValue {
	return t.original
}

// Changes returns the writable properties of instance whose current value
// differs from the snapshot. Properties missing from the snapshot count as
// changed when they hold a non-zero value.
func (om *ObjectMapping) Changes(instance any, original []OriginalValue) []*PropertyMapping {
	m := om.MappingFor(reflect.TypeOf(instance).Elem())
	before := make(map[string]any, len(original))
	for _, ov := range original {
		before[ov.Property] = ov.Value
	}

	var changed []*PropertyMapping
	for _, p := range m.properties {
		if p.dn || p.catchAll || p.readOnly || p.generated {
			continue
		}
		now := p.Get(instance)
		was, ok := before[p.name]
		if !ok {
			was = p.DefaultValue()
		}
		if !reflect.DeepEqual(now, was) {
			changed = append(changed, p)
		}
	}
	return changed
}
