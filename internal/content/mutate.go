package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"
)

var errTrailingData = errors.New("unexpected data after the JSON array")

// Mutation produces a new Document from an existing one.
type Mutation func(Document) (Document, error)

// Set returns a Mutation that writes value to the text leaf at path.
func Set(path TextPath, value string) Mutation {
	return func(doc Document) (Document, error) { return SetText(doc, path, value) }
}

// Replace returns a Mutation that replaces the sequence at path with items.
func Replace(path ArrayPath, items json.RawMessage) Mutation {
	return func(doc Document) (Document, error) { return ReplaceArray(doc, path, items) }
}

// ReplaceList returns a Mutation that replaces the text sequence at path with
// the comma-separated entries of text.
func ReplaceList(path ArrayPath, text string) Mutation {
	return func(doc Document) (Document, error) { return ReplaceListText(doc, path, text) }
}

// SetText returns a copy of doc with the text leaf at path set to value. doc
// itself is never modified.
func SetText(doc Document, path TextPath, value string) (Document, error) {
	out := doc.Clone()
	root := reflect.ValueOf(&out).Elem()

	var (
		leaf reflect.Value
		err  error
	)
	switch p := path.(type) {
	case FieldPath:
		leaf, err = resolveField(root, p)
	case ElementPath:
		leaf, err = resolveElementField(root, p)
	default:
		return doc, &UnknownPathError{Path: path.String(), Segment: path.String()}
	}
	if err != nil {
		return doc, err
	}
	if leaf.Kind() != reflect.String {
		return doc, &TypeMismatchError{Path: path.String(), Target: kindName(leaf.Type()), Value: "text"}
	}
	leaf.SetString(value)
	return out, nil
}

// ReplaceArray returns a copy of doc with the sequence at path replaced by the
// decoded items. items must be a JSON array whose elements fit the sequence.
func ReplaceArray(doc Document, path ArrayPath, items json.RawMessage) (Document, error) {
	trimmed := bytes.TrimSpace(items)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return doc, &TypeMismatchError{Path: path.String(), Target: "sequence", Value: jsonKind(trimmed)}
	}

	out := doc.Clone()
	target, err := resolveArray(reflect.ValueOf(&out).Elem(), path)
	if err != nil {
		return doc, err
	}

	next := reflect.New(target.Type())
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(next.Interface()); err != nil {
		return doc, &InvalidValueError{Path: path.String(), Err: err}
	}
	if err := decoder.Decode(new(json.RawMessage)); !errors.Is(err, io.EOF) {
		return doc, &InvalidValueError{Path: path.String(), Err: errTrailingData}
	}
	target.Set(next.Elem())
	return out, nil
}

// ReplaceListText is ReplaceArray for text sequences edited as one
// comma-joined field.
func ReplaceListText(doc Document, path ArrayPath, text string) (Document, error) {
	out := doc.Clone()
	target, err := resolveArray(reflect.ValueOf(&out).Elem(), path)
	if err != nil {
		return doc, err
	}
	if target.Type().Elem().Kind() != reflect.String {
		return doc, &TypeMismatchError{Path: path.String(), Target: kindName(target.Type()), Value: "text list"}
	}
	target.Set(reflect.ValueOf(SplitList(text)))
	return out, nil
}

func resolveField(root reflect.Value, p FieldPath) (reflect.Value, error) {
	section, err := resolveSection(root, p.Section, p.String())
	if err != nil {
		return reflect.Value{}, err
	}
	leaf, ok := fieldByName(section, p.Field)
	if !ok {
		return reflect.Value{}, &UnknownPathError{Path: p.String(), Segment: p.Field}
	}
	return leaf, nil
}

func resolveElementField(root reflect.Value, p ElementPath) (reflect.Value, error) {
	element, err := resolveElement(root, p.Section, p.Sequence, p.Index, p.String())
	if err != nil {
		return reflect.Value{}, err
	}
	return descend(element, p.Field, p.String())
}

func resolveArray(root reflect.Value, p ArrayPath) (reflect.Value, error) {
	var (
		target reflect.Value
		err    error
	)
	if p.Element == nil {
		if p.Field != "" {
			return reflect.Value{}, &UnknownPathError{Path: p.String() + "." + p.Field, Segment: p.Field}
		}
		var section reflect.Value
		section, err = resolveSection(root, p.Section, p.String())
		if err != nil {
			return reflect.Value{}, err
		}
		var ok bool
		target, ok = fieldByName(section, p.Sequence)
		if !ok {
			return reflect.Value{}, &UnknownPathError{Path: p.String(), Segment: p.Sequence}
		}
	} else {
		var element reflect.Value
		element, err = resolveElement(root, p.Section, p.Sequence, *p.Element, p.String())
		if err != nil {
			return reflect.Value{}, err
		}
		target, err = descend(element, p.Field, p.String())
		if err != nil {
			return reflect.Value{}, err
		}
	}
	if target.Kind() != reflect.Slice {
		return reflect.Value{}, &TypeMismatchError{Path: p.String(), Target: kindName(target.Type()), Value: "sequence"}
	}
	return target, nil
}

func resolveSection(root reflect.Value, name, path string) (reflect.Value, error) {
	section, ok := fieldByName(root, name)
	if !ok {
		return reflect.Value{}, &UnknownPathError{Path: path, Segment: name}
	}
	if section.Kind() != reflect.Struct {
		return reflect.Value{}, &TypeMismatchError{Path: path, Target: kindName(section.Type()), Value: "object"}
	}
	return section, nil
}

func resolveElement(root reflect.Value, sectionName, sequenceName string, index int, path string) (reflect.Value, error) {
	section, err := resolveSection(root, sectionName, path)
	if err != nil {
		return reflect.Value{}, err
	}
	sequence, ok := fieldByName(section, sequenceName)
	if !ok {
		return reflect.Value{}, &UnknownPathError{Path: path, Segment: sequenceName}
	}
	if sequence.Kind() != reflect.Slice {
		return reflect.Value{}, &TypeMismatchError{Path: path, Target: kindName(sequence.Type()), Value: "sequence element"}
	}
	if index < 0 || index >= sequence.Len() {
		return reflect.Value{}, &IndexError{Path: path, Index: index, Len: sequence.Len()}
	}
	return sequence.Index(index), nil
}

// descend walks a dotted field list below v. Nil nested objects are allocated
// so that optional blocks such as a project's testimonial can be filled in.
func descend(v reflect.Value, dotted, path string) (reflect.Value, error) {
	if strings.TrimSpace(dotted) == "" {
		return reflect.Value{}, &UnknownPathError{Path: path, Segment: dotted}
	}
	current := v
	for _, segment := range strings.Split(dotted, ".") {
		if current.Kind() == reflect.Ptr {
			if current.IsNil() {
				current.Set(reflect.New(current.Type().Elem()))
			}
			current = current.Elem()
		}
		if current.Kind() != reflect.Struct {
			return reflect.Value{}, &TypeMismatchError{Path: path, Target: kindName(current.Type()), Value: "object"}
		}
		next, ok := fieldByName(current, segment)
		if !ok {
			return reflect.Value{}, &UnknownPathError{Path: path, Segment: segment}
		}
		current = next
	}
	return current, nil
}

// fieldByName finds the struct field whose JSON name is name.
func fieldByName(v reflect.Value, name string) (reflect.Value, bool) {
	if v.Kind() != reflect.Struct || name == "" {
		return reflect.Value{}, false
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if jsonName(t.Field(i)) == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func jsonName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" || tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	return name
}

func kindName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "text"
	case reflect.Slice:
		return "sequence"
	case reflect.Struct:
		return "object"
	case reflect.Ptr:
		return kindName(t.Elem())
	default:
		return t.Kind().String()
	}
}

func jsonKind(raw []byte) string {
	if len(raw) == 0 {
		return "empty"
	}
	switch raw[0] {
	case '{':
		return "object"
	case '"':
		return "text"
	case 'n':
		return "null"
	case 't', 'f':
		return "boolean"
	default:
		return "number"
	}
}

// IsRejected reports whether err is one of the mutation rejections defined in
// this package.
func IsRejected(err error) bool {
	var (
		unknown  *UnknownPathError
		mismatch *TypeMismatchError
		index    *IndexError
		invalid  *InvalidValueError
	)
	return errors.Is(err, ErrAmbiguousPath) ||
		errors.As(err, &unknown) ||
		errors.As(err, &mismatch) ||
		errors.As(err, &index) ||
		errors.As(err, &invalid)
}
