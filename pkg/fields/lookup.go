// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package fields

import (
	"reflect"
	"strings"
)

// LookupByTag retrieves the value of a field by its tag type and value from a struct.
// Returns the field value and a boolean indicating if the field was found.
// Tag options (",omitempty" and friends) are ignored when matching.
func LookupByTag(obj any, tagType, tagValue string) (any, bool) {
	if obj == nil {
		return nil, false
	}

	v := reflect.ValueOf(obj)
	t := reflect.TypeOf(obj)

	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return nil, false
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag, _, _ := strings.Cut(field.Tag.Get(tagType), ",")
		if tag == tagValue {
			fieldValue := v.Field(i)
			if !fieldValue.CanInterface() {
				return nil, false
			}
			return fieldValue.Interface(), true
		}
	}
	return nil, false
}
