// Package jsonvalue provides an explicit JSON value tree used by the key
// generator. Objects keep document order and are always read by key lookup.
package jsonvalue

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return "unknown"
}

// Value is a JSON value. The zero Value is null.
type Value struct {
	kind  Kind
	b     bool
	s     string // string contents, or the source literal of a number
	items []Value
	obj   *Object
}

// Null returns the JSON null value.
func Null() Value { return Value{} }

// FromBool wraps a boolean.
func FromBool(b bool) Value { return Value{kind: KindBool, b: b} }

// FromNumber wraps a number literal as it appears in JSON text.
func FromNumber(literal string) Value { return Value{kind: KindNumber, s: literal} }

// FromString wraps a decoded string.
func FromString(s string) Value { return Value{kind: KindString, s: s} }

// FromArray wraps an ordered list of values.
func FromArray(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, items: items}
}

// FromObject wraps an object. A nil object is treated as empty.
func FromObject(o *Object) Value {
	if o == nil {
		o = NewObject()
	}
	return Value{kind: KindObject, obj: o}
}

func (v Value) Kind() Kind { return v.kind }

// Bool returns the boolean held by a KindBool value.
func (v Value) Bool() bool { return v.b }

// Str returns the contents of a KindString value.
func (v Value) Str() string {
	if v.kind != KindString {
		return ""
	}
	return v.s
}

// Literal returns the source text of a KindNumber value.
func (v Value) Literal() string {
	if v.kind != KindNumber {
		return ""
	}
	return v.s
}

// Len returns the number of elements of an array or members of an object.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindObject:
		return v.obj.Len()
	}
	return 0
}

// Index returns the array element at i.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindArray || i < 0 || i >= len(v.items) {
		return Value{}, false
	}
	return v.items[i], true
}

// Items returns the elements of an array. The slice must not be modified.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.items
}

// Field returns the member of an object named key.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	return v.obj.Get(key)
}

// Object returns the object held by a KindObject value, or nil.
func (v Value) Object() *Object {
	if v.kind != KindObject {
		return nil
	}
	return v.obj
}

// Object is an ordered string-keyed mapping.
type Object struct {
	keys   []string
	values []Value
	index  map[string]int
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{index: make(map[string]int)}
}

// Set stores value under key. An existing key keeps its position.
func (o *Object) Set(key string, value Value) {
	if i, ok := o.index[key]; ok {
		o.values[i] = value
		return
	}
	o.index[key] = len(o.keys)
	o.keys = append(o.keys, key)
	o.values = append(o.values, value)
}

// Get looks up key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return Value{}, false
	}
	i, ok := o.index[key]
	if !ok {
		return Value{}, false
	}
	return o.values[i], true
}

// Len returns the number of members.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys returns the member names in document order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Clone returns a shallow copy: members are shared, the mapping is not.
func (o *Object) Clone() *Object {
	c := &Object{
		keys:   make([]string, len(o.keys)),
		values: make([]Value, len(o.values)),
		index:  make(map[string]int, len(o.index)),
	}
	copy(c.keys, o.keys)
	copy(c.values, o.values)
	for k, i := range o.index {
		c.index[k] = i
	}
	return c
}
