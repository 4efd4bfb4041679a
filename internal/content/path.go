package content

import (
	"errors"
	"fmt"
	"strings"
)

// Path addresses part of a Document. The concrete types are FieldPath,
// ElementPath and ArrayPath.
type Path interface {
	String() string
	isPath()
}

// TextPath is a Path whose target is a single text leaf. Only FieldPath and
// ElementPath satisfy it, so whole sequences cannot be passed to SetText.
type TextPath interface {
	Path
	isTextPath()
}

// FieldPath addresses a text field directly under a section, e.g. hero.title.
type FieldPath struct {
	Section string
	Field   string
}

func (p FieldPath) String() string { return p.Section + "." + p.Field }
func (FieldPath) isPath()          {}
func (FieldPath) isTextPath()      {}

// ElementPath addresses a text field of one element of a sequence, e.g.
// services.cards[1].title. Field may descend into a nested object with a dot,
// as in testimonial.quote on a project.
type ElementPath struct {
	Section  string
	Sequence string
	Index    int
	Field    string
}

func (p ElementPath) String() string {
	return fmt.Sprintf("%s.%s[%d].%s", p.Section, p.Sequence, p.Index, p.Field)
}
func (ElementPath) isPath()     {}
func (ElementPath) isTextPath() {}

// ArrayPath addresses a whole sequence. With Element nil it is the sequence
// Section.Sequence itself; otherwise it is the sequence Field inside element
// *Element of Section.Sequence, e.g. projects.items[0].technologies.
type ArrayPath struct {
	Section  string
	Sequence string
	Element  *int
	Field    string
}

func (p ArrayPath) String() string {
	if p.Element == nil {
		return p.Section + "." + p.Sequence
	}
	return fmt.Sprintf("%s.%s[%d].%s", p.Section, p.Sequence, *p.Element, p.Field)
}
func (ArrayPath) isPath() {}

// ErrAmbiguousPath is returned for descriptors that name an index without a
// nested field (or the reverse). Whole sequences are replaced through
// ReplaceArray instead.
var ErrAmbiguousPath = errors.New("ambiguous field descriptor")

// Descriptor is the loose wire form of a text field address.
type Descriptor struct {
	Section     string `json:"section" validate:"required"`
	Field       string `json:"field" validate:"required"`
	Index       *int   `json:"index,omitempty"`
	NestedField string `json:"nestedField,omitempty"`
}

// ParseDescriptor resolves a Descriptor into a TextPath.
func ParseDescriptor(d Descriptor) (TextPath, error) {
	section := strings.TrimSpace(d.Section)
	field := strings.TrimSpace(d.Field)
	nested := strings.TrimSpace(d.NestedField)
	if section == "" || field == "" {
		return nil, &UnknownPathError{Path: section + "." + field, Segment: firstEmpty(section, field)}
	}
	switch {
	case d.Index != nil && nested != "":
		return ElementPath{Section: section, Sequence: field, Index: *d.Index, Field: nested}, nil
	case d.Index != nil:
		return nil, fmt.Errorf("%w: index %d on %s.%s has no nested field", ErrAmbiguousPath, *d.Index, section, field)
	case nested != "":
		return nil, fmt.Errorf("%w: nested field %q on %s.%s has no index", ErrAmbiguousPath, nested, section, field)
	default:
		return FieldPath{Section: section, Field: field}, nil
	}
}

func firstEmpty(section, field string) string {
	if section == "" {
		return "section"
	}
	return "field"
}

// UnknownPathError reports a path segment that is not part of the document
// shape.
type UnknownPathError struct {
	Path    string
	Segment string
}

func (e *UnknownPathError) Error() string {
	return fmt.Sprintf("unknown path %s: no %q", e.Path, e.Segment)
}

// TypeMismatchError reports a mutation whose value kind does not match the
// addressed target, e.g. text written over an object or a sequence.
type TypeMismatchError struct {
	Path   string
	Target string
	Value  string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch at %s: target is %s, value is %s", e.Path, e.Target, e.Value)
}

// IndexError reports an element index outside the sequence.
type IndexError struct {
	Path  string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range at %s (length %d)", e.Index, e.Path, e.Len)
}

// InvalidValueError reports a replacement payload that does not decode into
// the addressed sequence.
type InvalidValueError struct {
	Path string
	Err  error
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value for %s: %v", e.Path, e.Err)
}

func (e *InvalidValueError) Unwrap() error { return e.Err }
