package jsonvalue

import (
	"errors"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned by Parse for input that is not a single valid
// UTF-8 JSON text.
var ErrInvalidJSON = errors.New("invalid JSON")

// Parse validates data and builds its value tree.
func Parse(data []byte) (Value, error) {
	if !utf8.Valid(data) || !gjson.ValidBytes(data) {
		return Value{}, ErrInvalidJSON
	}
	return fromResult(gjson.ParseBytes(data)), nil
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.False:
		return FromBool(false)
	case gjson.True:
		return FromBool(true)
	case gjson.Number:
		return FromNumber(r.Raw)
	case gjson.String:
		return FromString(r.String())
	case gjson.JSON:
		if r.IsArray() {
			items := []Value{}
			r.ForEach(func(_, item gjson.Result) bool {
				items = append(items, fromResult(item))
				return true
			})
			return FromArray(items...)
		}
		obj := NewObject()
		r.ForEach(func(key, member gjson.Result) bool {
			obj.Set(key.String(), fromResult(member))
			return true
		})
		return FromObject(obj)
	}
	return Null()
}
