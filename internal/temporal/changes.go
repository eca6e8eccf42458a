package temporal

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// fieldChange pairs a tracked field with its new value.
type fieldChange struct {
	field FieldConfig
	value any
}

// changedFields compares the entity's captured baseline against its current
// values and returns the tracked fields that differ, in declaration order.
// On the first persistence every tracked field counts as changed, so the
// initial history rows always exist. Pure comparison, no side effects.
func (t *Type) changedFields(e Entity, first bool) []fieldChange {
	current := e.TemporalValues()
	clock := e.Clock()

	var out []fieldChange
	for _, f := range t.cfg.Fields {
		val := current[f.Name]
		if first || !valuesEqual(clock.baselineValue(f.Name), val) {
			out = append(out, fieldChange{field: f, value: val})
		}
	}
	return out
}

// valuesEqual compares by value through canonical JSON encoding, so a value
// scanned back from the store (int32, float64, time truncated to micros)
// compares equal to the Go value that produced it.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(ja, jb)
}
