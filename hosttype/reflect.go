// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

package hosttype

import (
	"fmt"
	"reflect"
	"strings"
)

// TagKey is the struct tag key used to rename or skip fields.
//
//	Pos [2]float32 `shader:"position"`
//	Tmp int        `shader:"-"`
const TagKey = "shader"

var reflectKinds = map[reflect.Kind]Kind{
	reflect.Bool:    KindBool,
	reflect.Int8:    KindInt8,
	reflect.Int16:   KindInt16,
	reflect.Int32:   KindInt32,
	reflect.Int64:   KindInt64,
	reflect.Int:     KindInt,
	reflect.Uint8:   KindUint8,
	reflect.Uint16:  KindUint16,
	reflect.Uint32:  KindUint32,
	reflect.Uint64:  KindUint64,
	reflect.Uint:    KindUint,
	reflect.Float32: KindFloat32,
	reflect.Float64: KindFloat64,
	reflect.String:  KindString,
}

// FromReflect converts a reflected Go type.
func FromReflect(t reflect.Type) (Type, error) {
	if t == nil {
		return Type{}, fmt.Errorf("hosttype: nil reflect.Type")
	}
	if k, ok := reflectKinds[t.Kind()]; ok {
		return Scalar(k), nil
	}
	switch t.Kind() {
	case reflect.Array:
		elem, err := FromReflect(t.Elem())
		if err != nil {
			return Type{}, err
		}
		return ArrayOf(t.Len(), elem), nil
	case reflect.Slice:
		elem, err := FromReflect(t.Elem())
		if err != nil {
			return Type{}, err
		}
		return SliceOf(elem), nil
	case reflect.Struct:
		if t.Name() == "" {
			return Type{Kind: KindOther, Name: "anonymous struct"}, nil
		}
		if isHostLayoutType(t) {
			return Type{Kind: KindOther, Name: HostLayoutName}, nil
		}
		return Named(t.Name()), nil
	}
	return Type{Kind: KindOther, Name: t.Kind().String()}, nil
}

// FieldsOf lists the shader-visible fields of struct type t in declaration
// order. stable reports whether t carries a structs.HostLayout field.
func FieldsOf(t reflect.Type) (fields []Field, stable bool, err error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, false, fmt.Errorf("hosttype: %s is not a struct", t)
	}
	for i := range t.NumField() {
		sf := t.Field(i)
		if isHostLayoutType(sf.Type) {
			stable = true
			continue
		}
		if sf.Name == "_" {
			continue
		}
		name, skip := tagName(sf.Tag.Get(TagKey))
		if skip {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		ft, ferr := FromReflect(sf.Type)
		if ferr != nil {
			return nil, false, fmt.Errorf("hosttype: field %s.%s: %w", t.Name(), sf.Name, ferr)
		}
		fields = append(fields, Field{Name: name, Type: ft})
	}
	return fields, stable, nil
}

// StructOf describes struct type T.
func StructOf[T any]() (name string, fields []Field, stable bool, err error) {
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	fields, stable, err = FieldsOf(t)
	return t.Name(), fields, stable, err
}

// TagName interprets a `shader:"..."` tag value. skip is true for "-".
func TagName(tag string) (name string, skip bool) {
	return tagName(tag)
}

func tagName(tag string) (string, bool) {
	if tag == "-" {
		return "", true
	}
	name, _, _ := strings.Cut(tag, ",")
	return name, false
}

func isHostLayoutType(t reflect.Type) bool {
	return t.PkgPath() == "structs" && t.Name() == "HostLayout"
}
