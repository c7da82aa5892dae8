// Package hcl - Safe CTY value conversion
// Scenario values must be known, non-null and of the expected type.
// Nothing is coerced silently.
package hcl

import (
	"fmt"
	"math/big"

	"github.com/zclconf/go-cty/cty"
)

// ValueError describes a scenario attribute with an unusable value
type ValueError struct {
	Attribute string
	Reason    string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("attribute %s: %s", e.Attribute, e.Reason)
}

func checkUsable(name string, val cty.Value) error {
	if !val.IsWhollyKnown() {
		return &ValueError{Attribute: name, Reason: "value is not known"}
	}
	if val.IsNull() {
		return &ValueError{Attribute: name, Reason: "value is null"}
	}
	return nil
}

func ctyInt64(name string, val cty.Value) (int64, error) {
	if err := checkUsable(name, val); err != nil {
		return 0, err
	}
	if val.Type() != cty.Number {
		return 0, &ValueError{Attribute: name, Reason: fmt.Sprintf("expected number, got %s", val.Type().FriendlyName())}
	}

	bf := val.AsBigFloat()
	if !bf.IsInt() {
		return 0, &ValueError{Attribute: name, Reason: fmt.Sprintf("expected whole number, got %s", bf.Text('g', 10))}
	}
	n, acc := bf.Int64()
	if acc != big.Exact {
		return 0, &ValueError{Attribute: name, Reason: "number out of range"}
	}
	return n, nil
}

func ctyString(name string, val cty.Value) (string, error) {
	if err := checkUsable(name, val); err != nil {
		return "", err
	}
	if val.Type() != cty.String {
		return "", &ValueError{Attribute: name, Reason: fmt.Sprintf("expected string, got %s", val.Type().FriendlyName())}
	}
	return val.AsString(), nil
}

func ctyBool(name string, val cty.Value) (bool, error) {
	if err := checkUsable(name, val); err != nil {
		return false, err
	}
	if val.Type() != cty.Bool {
		return false, &ValueError{Attribute: name, Reason: fmt.Sprintf("expected bool, got %s", val.Type().FriendlyName())}
	}
	return val.True(), nil
}

// ctyElements returns the elements of a list or tuple value in order
func ctyElements(name string, val cty.Value) ([]cty.Value, error) {
	if err := checkUsable(name, val); err != nil {
		return nil, err
	}
	ty := val.Type()
	if !ty.IsListType() && !ty.IsTupleType() {
		return nil, &ValueError{Attribute: name, Reason: fmt.Sprintf("expected list, got %s", ty.FriendlyName())}
	}

	elems := make([]cty.Value, 0, val.LengthInt())
	iter := val.ElementIterator()
	for iter.Next() {
		_, v := iter.Element()
		elems = append(elems, v)
	}
	return elems, nil
}

func ctyInt64List(name string, val cty.Value) ([]int64, error) {
	elems, err := ctyElements(name, val)
	if err != nil {
		return nil, err
	}

	out := make([]int64, len(elems))
	for i, v := range elems {
		n, err := ctyInt64(fmt.Sprintf("%s[%d]", name, i), v)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func ctyIntList(name string, val cty.Value) ([]int, error) {
	wide, err := ctyInt64List(name, val)
	if err != nil {
		return nil, err
	}

	out := make([]int, len(wide))
	for i, n := range wide {
		out[i] = int(n)
	}
	return out, nil
}

func ctyStringList(name string, val cty.Value) ([]string, error) {
	elems, err := ctyElements(name, val)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(elems))
	for i, v := range elems {
		s, err := ctyString(fmt.Sprintf("%s[%d]", name, i), v)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}
