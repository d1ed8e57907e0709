package attr

import (
	"context"
	"errors"
	"testing"
)

func testRegistry() *Registry {
	val := 21.0
	return NewRegistry(
		&Attribute{
			Name: "bath_temp", Kind: KindFloat, Access: ReadOnly, Unit: "C",
			Read: func(context.Context) (Value, error) { return Float(23.5), nil },
		},
		&Attribute{
			Name: "temp_setp", Kind: KindFloat, Access: ReadWrite, Unit: "C",
			Read: func(context.Context) (Value, error) { return Float(val), nil },
			Write: func(_ context.Context, v Value) (Value, error) {
				val = v.Float
				return Float(val), nil
			},
		},
	)
}

func TestRegistry_Order(t *testing.T) {
	r := testRegistry()
	names := r.Names()
	if len(names) != 2 || names[0] != "bath_temp" || names[1] != "temp_setp" {
		t.Fatalf("Names() = %v", names)
	}
}

func TestRegistry_ReadWrite(t *testing.T) {
	r := testRegistry()
	ctx := context.Background()
	v, err := r.Read(ctx, "bath_temp")
	if err != nil || v.Float != 23.5 {
		t.Fatalf("Read(bath_temp) = %v, %v", v, err)
	}
	got, err := r.Write(ctx, "temp_setp", Float(19.25))
	if err != nil || got.Float != 19.25 {
		t.Fatalf("Write(temp_setp) = %v, %v", got, err)
	}
	v, err = r.Read(ctx, "temp_setp")
	if err != nil || v.Float != 19.25 {
		t.Fatalf("Read after Write = %v, %v", v, err)
	}
}

func TestRegistry_UnknownAttribute(t *testing.T) {
	r := testRegistry()
	if _, err := r.Read(context.Background(), "nope"); !errors.Is(err, ErrUnknown) {
		t.Fatalf("expected ErrUnknown, got %v", err)
	}
	if _, err := r.Write(context.Background(), "nope", Float(1)); !errors.Is(err, ErrUnknown) {
		t.Fatalf("expected ErrUnknown, got %v", err)
	}
}

func TestRegistry_ReadOnlyWriteRejected(t *testing.T) {
	r := testRegistry()
	if _, err := r.Write(context.Background(), "bath_temp", Float(1)); !errors.Is(err, ErrAccess) {
		t.Fatalf("expected ErrAccess, got %v", err)
	}
}
