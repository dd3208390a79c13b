package validation

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Extras holds free-form rendering hints such as grid settings and global
// variables. The zero value is empty.
type Extras struct {
	value cty.Value
}

// ParseExtras decodes a JSON object into Extras.
func ParseExtras(raw []byte) (Extras, error) {
	ty, err := ctyjson.ImpliedType(raw)
	if err != nil {
		return Extras{}, err
	}
	if !ty.IsObjectType() {
		return Extras{}, fmt.Errorf("expected a JSON object, got %s", ty.FriendlyName())
	}
	v, err := ctyjson.Unmarshal(raw, ty)
	if err != nil {
		return Extras{}, err
	}
	return Extras{value: v}, nil
}

// IsEmpty reports whether no hints are set.
func (e Extras) IsEmpty() bool {
	return len(e.Keys()) == 0
}

// Keys returns the top-level hint names in sorted order.
func (e Extras) Keys() []string {
	if e.value.IsNull() || !e.value.Type().IsObjectType() {
		return nil
	}
	keys := make([]string, 0, len(e.value.Type().AttributeTypes()))
	for k := range e.value.Type().AttributeTypes() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Object returns a nested object, or empty Extras when key is absent or not
// an object.
func (e Extras) Object(key string) Extras {
	v, ok := e.attr(key)
	if !ok || !v.Type().IsObjectType() {
		return Extras{}
	}
	return Extras{value: v}
}

// Number returns a numeric hint.
func (e Extras) Number(key string) (float64, bool) {
	v, ok := e.attr(key)
	if !ok || !v.Type().Equals(cty.Number) {
		return 0, false
	}
	f, _ := v.AsBigFloat().Float64()
	return f, true
}

// Text returns a string hint.
func (e Extras) Text(key string) (string, bool) {
	v, ok := e.attr(key)
	if !ok || !v.Type().Equals(cty.String) {
		return "", false
	}
	return v.AsString(), true
}

// Bool returns a boolean hint.
func (e Extras) Bool(key string) (bool, bool) {
	v, ok := e.attr(key)
	if !ok || !v.Type().Equals(cty.Bool) {
		return false, false
	}
	return v.True(), true
}

// Values flattens the scalar top-level hints into strings. Nested objects and
// lists are left out.
func (e Extras) Values() map[string]string {
	out := make(map[string]string)
	for _, k := range e.Keys() {
		v, ok := e.attr(k)
		if !ok {
			continue
		}
		switch {
		case v.Type().Equals(cty.String):
			out[k] = v.AsString()
		case v.Type().Equals(cty.Number):
			out[k] = v.AsBigFloat().Text('f', -1)
		case v.Type().Equals(cty.Bool):
			out[k] = strconv.FormatBool(v.True())
		}
	}
	return out
}

func (e Extras) attr(key string) (cty.Value, bool) {
	if e.value.IsNull() || !e.value.Type().IsObjectType() || !e.value.Type().HasAttribute(key) {
		return cty.NilVal, false
	}
	v := e.value.GetAttr(key)
	if v.IsNull() || !v.IsKnown() {
		return cty.NilVal, false
	}
	return v, true
}
