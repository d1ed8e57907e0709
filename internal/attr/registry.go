package attr

import (
	"context"
	"errors"
	"fmt"

	"github.com/igbemx/dev-softimax-lauda-t2200/internal/metrics"
)

// Access declares whether clients may write an attribute.
type Access int

const (
	ReadOnly Access = iota
	ReadWrite
)

func (a Access) String() string {
	if a == ReadWrite {
		return "rw"
	}
	return "r"
}

var (
	// ErrUnknown is returned for attribute names not in the registry.
	ErrUnknown = errors.New("unknown attribute")
	// ErrAccess is returned when writing a read-only attribute.
	ErrAccess = errors.New("attribute is read-only")
)

// Attribute binds a name to a typed reader and an optional writer. This is
// the explicit accessor table: the hosting surface dispatches on it instead
// of looking callbacks up by name.
type Attribute struct {
	Name   string
	Kind   Kind
	Access Access
	Unit   string
	Read   func(ctx context.Context) (Value, error)
	Write  func(ctx context.Context, v Value) (Value, error)
}

// Registry is an ordered, immutable-after-build attribute set.
type Registry struct {
	attrs map[string]*Attribute
	order []string
}

// NewRegistry builds a registry from the given attributes. Order of
// declaration is preserved for listing and polling.
func NewRegistry(attrs ...*Attribute) *Registry {
	r := &Registry{attrs: make(map[string]*Attribute, len(attrs))}
	for _, a := range attrs {
		r.attrs[a.Name] = a
		r.order = append(r.order, a.Name)
	}
	return r
}

// Get looks up an attribute by name.
func (r *Registry) Get(name string) (*Attribute, bool) {
	a, ok := r.attrs[name]
	return a, ok
}

// Names returns attribute names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Read performs a live read of the named attribute.
func (r *Registry) Read(ctx context.Context, name string) (Value, error) {
	a, ok := r.attrs[name]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	v, err := a.Read(ctx)
	if err != nil {
		return Value{}, err
	}
	metrics.IncAttrRead(name)
	return v, nil
}

// Write forwards a value to the named attribute's writer and returns the
// acknowledged value.
func (r *Registry) Write(ctx context.Context, name string, v Value) (Value, error) {
	a, ok := r.attrs[name]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	if a.Access != ReadWrite || a.Write == nil {
		return Value{}, fmt.Errorf("%w: %s", ErrAccess, name)
	}
	got, err := a.Write(ctx, v)
	if err != nil {
		return Value{}, err
	}
	metrics.IncAttrWrite(name)
	return got, nil
}
