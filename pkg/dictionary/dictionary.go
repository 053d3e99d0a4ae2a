package dictionary

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrDuplicateAttribute is returned when an id or name is already defined.
	ErrDuplicateAttribute = errors.New("duplicate attribute")
	// ErrInvalidAttribute is returned for definitions without a name or id.
	ErrInvalidAttribute = errors.New("invalid attribute definition")
)

// Dictionary maps attribute ids to names and types.
// It is safe for concurrent reads; Add should only be called during setup.
type Dictionary struct {
	mu     sync.RWMutex
	byID   map[uint8]*AttributeDefinition
	byName map[string]*AttributeDefinition
}

// New creates a new empty dictionary
func New() *Dictionary {
	return &Dictionary{
		byID:   make(map[uint8]*AttributeDefinition),
		byName: make(map[string]*AttributeDefinition),
	}
}

// NewDefault returns a dictionary holding the RFC 2865/2866 attributes.
func NewDefault() (*Dictionary, error) {
	dict := New()
	if err := dict.Add(StandardAttributes...); err != nil {
		return nil, err
	}
	return dict, nil
}

// Add registers attribute definitions. Either all are added or none.
func (d *Dictionary) Add(attrs ...*AttributeDefinition) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	seenID := make(map[uint8]struct{}, len(attrs))
	seenName := make(map[string]struct{}, len(attrs))

	for _, attr := range attrs {
		if attr == nil || attr.ID == 0 || attr.Name == "" {
			return fmt.Errorf("%w: %+v", ErrInvalidAttribute, attr)
		}
		if _, ok := d.byID[attr.ID]; ok {
			return fmt.Errorf("%w: id %d", ErrDuplicateAttribute, attr.ID)
		}
		if _, ok := seenID[attr.ID]; ok {
			return fmt.Errorf("%w: id %d", ErrDuplicateAttribute, attr.ID)
		}
		if _, ok := d.byName[attr.Name]; ok {
			return fmt.Errorf("%w: name %q", ErrDuplicateAttribute, attr.Name)
		}
		if _, ok := seenName[attr.Name]; ok {
			return fmt.Errorf("%w: name %q", ErrDuplicateAttribute, attr.Name)
		}
		seenID[attr.ID] = struct{}{}
		seenName[attr.Name] = struct{}{}
	}

	for _, attr := range attrs {
		d.byID[attr.ID] = attr
		d.byName[attr.Name] = attr
	}

	return nil
}

// Replace adds attr, overwriting any definition with the same id.
func (d *Dictionary) Replace(attr *AttributeDefinition) error {
	if attr == nil || attr.ID == 0 || attr.Name == "" {
		return fmt.Errorf("%w: %+v", ErrInvalidAttribute, attr)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if other, ok := d.byName[attr.Name]; ok && other.ID != attr.ID {
		return fmt.Errorf("%w: name %q", ErrDuplicateAttribute, attr.Name)
	}
	if old, ok := d.byID[attr.ID]; ok {
		delete(d.byName, old.Name)
	}

	d.byID[attr.ID] = attr
	d.byName[attr.Name] = attr
	return nil
}

// LookupByID finds an attribute by its type code.
func (d *Dictionary) LookupByID(id uint8) (*AttributeDefinition, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	attr, ok := d.byID[id]
	return attr, ok
}

// LookupByName finds an attribute by name.
func (d *Dictionary) LookupByName(name string) (*AttributeDefinition, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	attr, ok := d.byName[name]
	return attr, ok
}

// Name returns the attribute name for id, or "Attr-<id>" when unknown.
func (d *Dictionary) Name(id uint8) string {
	if attr, ok := d.LookupByID(id); ok {
		return attr.Name
	}
	return fmt.Sprintf("Attr-%d", id)
}

// Len returns the number of defined attributes.
func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}

// Attributes returns all definitions ordered by id.
func (d *Dictionary) Attributes() []*AttributeDefinition {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*AttributeDefinition, 0, len(d.byID))
	for _, attr := range d.byID {
		out = append(out, attr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
