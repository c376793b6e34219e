package marker

import "reflect"

// ptrOf extracts a stable identity key from a pointer-shaped value stored
// as `any`. The marker cache only ever receives pointer types from its
// caller (ydoc.Item), so Kind() is always reflect.Ptr here.
func ptrOf(v any) uintptr {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr {
		panic("marker: identity requires a pointer-shaped item reference")
	}
	return rv.Pointer()
}
