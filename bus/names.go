package bus

import (
	"reflect"
	"strings"
)

// NameFormatter names message types. The name is used as exchange name and AMQP type property.
type NameFormatter interface {
	MessageName(t reflect.Type) string
}

// NameFormatterFunc type is an adapter to allow the use of
// ordinary functions as NameFormatter.
type NameFormatterFunc func(t reflect.Type) string

// MessageName implements NameFormatter.
func (f NameFormatterFunc) MessageName(t reflect.Type) string {
	return f(t)
}

// DefaultNameFormatter names a type by its package path and name, e.g. "example.com.orders:Created".
// Pointers are dereferenced.
type DefaultNameFormatter struct{}

// MessageName implements NameFormatter.
func (DefaultNameFormatter) MessageName(t reflect.Type) string {
	if t == nil {
		return ""
	}

	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t.PkgPath() == "" {
		return t.String()
	}

	return strings.ReplaceAll(t.PkgPath(), "/", ".") + ":" + t.Name()
}
