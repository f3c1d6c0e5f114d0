package steps

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"

	"github.com/spf13/cast"
)

// DefaultMaxDepth bounds recursion in ValueOf and Comparator.Equal.
// Anything nested deeper is treated as changed.
const DefaultMaxDepth = 64

// ValueKind enumerates the variants a Value can hold.
type ValueKind int

const (
	// KindAbsent is a missing or nil value.
	KindAbsent ValueKind = iota
	// KindPrimitive is a scalar compared with loose equality.
	KindPrimitive
	// KindCallable is a function represented by its source text.
	KindCallable
	// KindRecord is a keyed composite.
	KindRecord
	// KindList is an ordered composite keyed by index.
	KindList

	kindTooDeep
)

// Value is the closed set of shapes the structural comparator understands.
type Value struct {
	kind   ValueKind
	prim   any
	source string
	fields map[string]Value
	items  []Value
}

// Sourcer is implemented by values that compare by source text, such as
// operations that carry their own serialized body.
type Sourcer interface {
	Source() string
}

// AbsentValue returns the Absent value.
func AbsentValue() Value { return Value{kind: KindAbsent} }

// Prim wraps a scalar.
func Prim(v any) Value {
	if v == nil {
		return AbsentValue()
	}
	return Value{kind: KindPrimitive, prim: v}
}

// Callable returns a value compared by its source text.
func Callable(source string) Value { return Value{kind: KindCallable, source: source} }

// Record returns a keyed composite.
func Record(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindRecord, fields: fields}
}

// List returns an ordered composite.
func List(items ...Value) Value { return Value{kind: KindList, items: items} }

// Kind reports the variant held by v.
func (v Value) Kind() ValueKind { return v.kind }

func (v Value) composite() bool { return v.kind == KindRecord || v.kind == KindList }

func (v Value) keys() []string {
	if v.kind == KindList {
		keys := make([]string, len(v.items))
		for i := range v.items {
			keys[i] = strconv.Itoa(i)
		}
		return keys
	}
	keys := make([]string, 0, len(v.fields))
	for k := range v.fields {
		keys = append(keys, k)
	}
	return keys
}

func (v Value) field(key string) Value {
	if v.kind == KindList {
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(v.items) {
			return AbsentValue()
		}
		return v.items[i]
	}
	f, ok := v.fields[key]
	if !ok {
		return AbsentValue()
	}
	return f
}

// ValueOf converts arbitrary Go data into a Value.
//
// Conversion rules:
//   - nil, nil pointers, nil interfaces and nil funcs become Absent
//   - funcs become Callable using FuncSource; Sourcer values use Source()
//   - maps and structs become Records (exported fields only; the struct tag
//     `equal:"-"` skips a field and `equal:"name"` renames it)
//   - slices and arrays become Lists; []byte is a string primitive
//   - structs without exported fields (time.Time and friends) are primitives
//   - everything else is a primitive
//
// Nil maps and slices are empty composites. A pointer, map or slice that
// refers back to one of its ancestors becomes a value that never compares
// equal; one reached again through another path converts once and is
// shared.
func ValueOf(v any) Value {
	cv := converter{
		onPath: make(map[visit]struct{}),
		done:   make(map[visit]Value),
	}
	return cv.valueOf(reflect.ValueOf(v), 0)
}

var (
	valueType   = reflect.TypeOf(Value{})
	sourcerType = reflect.TypeOf((*Sourcer)(nil)).Elem()
)

// visit identifies a referenced pointer, map or slice during conversion.
type visit struct {
	ptr uintptr
	typ reflect.Type
	n   int
}

type converter struct {
	onPath map[visit]struct{}
	done   map[visit]Value
}

func (cv *converter) valueOf(rv reflect.Value, depth int) Value {
	if depth > DefaultMaxDepth {
		return Value{kind: kindTooDeep}
	}
	if !rv.IsValid() {
		return AbsentValue()
	}
	if rv.Type() == valueType {
		return rv.Interface().(Value)
	}
	if rv.Type().Implements(sourcerType) && rv.CanInterface() {
		if (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) && rv.IsNil() {
			return AbsentValue()
		}
		return Callable(rv.Interface().(Sourcer).Source())
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		if rv.IsNil() || (rv.Kind() == reflect.Slice && rv.Len() == 0) {
			break
		}
		key := visit{ptr: rv.Pointer(), typ: rv.Type()}
		if rv.Kind() == reflect.Slice {
			key.n = rv.Len()
		}
		if _, ok := cv.onPath[key]; ok {
			return Value{kind: kindTooDeep}
		}
		if v, ok := cv.done[key]; ok {
			return v
		}
		cv.onPath[key] = struct{}{}
		v := cv.convert(rv, depth)
		delete(cv.onPath, key)
		cv.done[key] = v
		return v
	}
	return cv.convert(rv, depth)
}

func (cv *converter) convert(rv reflect.Value, depth int) Value {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return AbsentValue()
		}
		return cv.valueOf(rv.Elem(), depth+1)

	case reflect.Func:
		if rv.IsNil() {
			return AbsentValue()
		}
		return Callable(FuncSource(rv.Interface()))

	case reflect.Map:
		fields := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			fields[mapKey(iter.Key())] = cv.valueOf(iter.Value(), depth+1)
		}
		return Record(fields)

	case reflect.Struct:
		return cv.structValue(rv, depth)

	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return Prim(string(rv.Bytes()))
		}
		fallthrough
	case reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			items[i] = cv.valueOf(rv.Index(i), depth+1)
		}
		return List(items...)
	}

	if !rv.CanInterface() {
		return Prim(fmt.Sprint(rv))
	}
	return Prim(rv.Interface())
}

func (cv *converter) structValue(rv reflect.Value, depth int) Value {
	t := rv.Type()
	fields := make(map[string]Value)
	exported := 0
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		exported++
		name := sf.Name
		if tag, ok := sf.Tag.Lookup("equal"); ok {
			if tag == "-" {
				continue
			}
			if tag != "" {
				name = tag
			}
		}
		fields[name] = cv.valueOf(rv.Field(i), depth+1)
	}
	if exported == 0 && rv.CanInterface() {
		return Prim(rv.Interface())
	}
	return Record(fields)
}

func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	if k.CanInterface() {
		if s, err := cast.ToStringE(k.Interface()); err == nil {
			return s
		}
	}
	return fmt.Sprint(k)
}

// Comparator decides whether two values are behaviorally the same.
// The zero value is ready to use.
type Comparator struct {
	// MaxDepth bounds recursion; 0 means DefaultMaxDepth.
	MaxDepth int
}

// Equal reports whether a and b are structurally equal using the default
// Comparator.
func Equal(a, b Value) bool {
	return Comparator{}.Equal(a, b)
}

// StepsEqual reports whether two step definitions are the same step using
// the default Comparator.
func StepsEqual(a, b Step) bool {
	return Comparator{}.StepsEqual(a, b)
}

// Equal reports whether a and b are structurally equal.
//
// Callables are equal when their source text is equal. Records and lists
// are compared key by key over the union of their keys, lists being keyed
// by index; a key missing on one side only matches an Absent value on the
// other. Primitives use loose equality. Absent equals only Absent.
func (c Comparator) Equal(a, b Value) bool {
	cmp := comparison{max: c.maxDepth(), proven: make(map[pairKey]int)}
	return cmp.equal(a, b, 0)
}

// StepsEqual compares the id, operation source and params of two steps.
func (c Comparator) StepsEqual(a, b Step) bool {
	return c.Equal(stepValue(a), stepValue(b))
}

func (c Comparator) maxDepth() int {
	if c.MaxDepth > 0 {
		return c.MaxDepth
	}
	return DefaultMaxDepth
}

// ident is the identity of a composite's backing storage.
type ident struct {
	ptr uintptr
	n   int
}

type pairKey struct{ a, b ident }

// comparison remembers composite pairs already found equal, with the
// deepest depth they were proven at, so shared subtrees are walked once.
type comparison struct {
	max    int
	proven map[pairKey]int
}

func identOf(v Value) (ident, bool) {
	switch {
	case v.kind == KindRecord && len(v.fields) > 0:
		return ident{ptr: reflect.ValueOf(v.fields).Pointer()}, true
	case v.kind == KindList && len(v.items) > 0:
		return ident{ptr: reflect.ValueOf(v.items).Pointer(), n: len(v.items)}, true
	}
	return ident{}, false
}

func (cmp *comparison) equal(a, b Value, depth int) bool {
	if depth > cmp.max || a.kind == kindTooDeep || b.kind == kindTooDeep {
		return false
	}

	switch {
	case a.kind == KindCallable && b.kind == KindCallable:
		return a.source == b.source

	case a.composite() && b.composite():
		ia, okA := identOf(a)
		ib, okB := identOf(b)
		key := pairKey{ia, ib}
		if okA && okB {
			if at, ok := cmp.proven[key]; ok && depth <= at {
				return true
			}
		}
		for _, k := range unionKeys(a, b) {
			if !cmp.equal(a.field(k), b.field(k), depth+1) {
				return false
			}
		}
		if okA && okB {
			cmp.proven[key] = depth
		}
		return true

	case a.kind == KindAbsent || b.kind == KindAbsent:
		return a.kind == b.kind

	case a.kind == KindPrimitive && b.kind == KindPrimitive:
		return looseEqual(a.prim, b.prim)
	}
	return false
}

func unionKeys(a, b Value) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, v := range [2]Value{a, b} {
		for _, k := range v.keys() {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// looseEqual compares scalars of the same dynamic type directly and
// otherwise coerces both sides to a number, then to a string.
func looseEqual(a, b any) bool {
	if reflect.TypeOf(a) == reflect.TypeOf(b) {
		return reflect.DeepEqual(a, b)
	}
	if fa, err := cast.ToFloat64E(a); err == nil {
		if fb, err := cast.ToFloat64E(b); err == nil {
			return fa == fb
		}
	}
	if sa, err := cast.ToStringE(a); err == nil {
		if sb, err := cast.ToStringE(b); err == nil {
			return sa == sb
		}
	}
	return false
}

func stepValue(s Step) Value {
	do := AbsentValue()
	if src := s.SourceKey(); src != "" {
		do = Callable(src)
	}
	return Record(map[string]Value{
		"id":     Prim(s.ID),
		"do":     do,
		"params": ValueOf(s.Params),
	})
}
