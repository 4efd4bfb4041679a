package content

import (
	"fmt"
	"reflect"
	"strings"
)

// Fragment is one non-empty text leaf of a Document.
type Fragment struct {
	Path    string `json:"path"`
	Section string `json:"section"`
	Text    string `json:"text"`
}

// Fragments flattens every non-empty text leaf of doc in document order.
func Fragments(doc Document) []Fragment {
	var out []Fragment
	root := reflect.ValueOf(doc)
	t := root.Type()
	for i := 0; i < t.NumField(); i++ {
		section := jsonName(t.Field(i))
		if section == "" {
			continue
		}
		collectFragments(root.Field(i), section, section, &out)
	}
	return out
}

func collectFragments(v reflect.Value, path, section string, out *[]Fragment) {
	switch v.Kind() {
	case reflect.String:
		if text := strings.TrimSpace(v.String()); text != "" {
			*out = append(*out, Fragment{Path: path, Section: section, Text: v.String()})
		}
	case reflect.Ptr:
		if !v.IsNil() {
			collectFragments(v.Elem(), path, section, out)
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			collectFragments(v.Index(i), fmt.Sprintf("%s[%d]", path, i), section, out)
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			name := jsonName(t.Field(i))
			if name == "" {
				continue
			}
			collectFragments(v.Field(i), path+"."+name, section, out)
		}
	}
}
