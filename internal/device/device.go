// Package device binds the Lauda adapter to the attribute registry exposed
// by the control server.
package device

import (
	"context"

	"github.com/igbemx/dev-softimax-lauda-t2200/internal/attr"
	"github.com/igbemx/dev-softimax-lauda-t2200/internal/lauda"
	"github.com/igbemx/dev-softimax-lauda-t2200/internal/metrics"
)

// Attribute names as exposed to clients.
const (
	AttrBathTemp = "bath_temp"
	AttrSetpoint = "temp_setp"
	AttrStatus   = "chiller_status"
	AttrIsOn     = "is_on"
	AttrPressure = "pressure"
)

// Registry builds the attribute table for one chiller adapter. Reading
// gauges are mirrored to prometheus as a side effect of successful reads.
func Registry(ad *lauda.Adapter) *attr.Registry {
	return attr.NewRegistry(
		&attr.Attribute{
			Name: AttrBathTemp, Kind: attr.KindFloat, Access: attr.ReadOnly, Unit: "C",
			Read: func(ctx context.Context) (attr.Value, error) {
				v, err := ad.BathTemp(ctx)
				if err != nil {
					return attr.Value{}, err
				}
				metrics.SetBathTemp(v)
				return attr.Float(v), nil
			},
		},
		&attr.Attribute{
			Name: AttrSetpoint, Kind: attr.KindFloat, Access: attr.ReadWrite, Unit: "C",
			Read: func(ctx context.Context) (attr.Value, error) {
				v, err := ad.Setpoint(ctx)
				if err != nil {
					return attr.Value{}, err
				}
				metrics.SetSetpoint(v)
				return attr.Float(v), nil
			},
			Write: func(ctx context.Context, v attr.Value) (attr.Value, error) {
				got, err := ad.SetSetpoint(ctx, v.Float)
				if err != nil {
					return attr.Value{}, err
				}
				metrics.SetSetpoint(got)
				return attr.Float(got), nil
			},
		},
		&attr.Attribute{
			Name: AttrStatus, Kind: attr.KindString, Access: attr.ReadOnly,
			Read: func(ctx context.Context) (attr.Value, error) {
				s, err := ad.Status(ctx)
				if err != nil {
					return attr.Value{}, err
				}
				return attr.String(s), nil
			},
		},
		&attr.Attribute{
			Name: AttrIsOn, Kind: attr.KindBool, Access: attr.ReadWrite,
			Read: func(ctx context.Context) (attr.Value, error) {
				on, err := ad.IsOn(ctx)
				if err != nil {
					return attr.Value{}, err
				}
				return attr.Bool(on), nil
			},
			Write: func(ctx context.Context, v attr.Value) (attr.Value, error) {
				if err := ad.SetOn(ctx, v.Bool); err != nil {
					return attr.Value{}, err
				}
				return attr.Bool(v.Bool), nil
			},
		},
		&attr.Attribute{
			Name: AttrPressure, Kind: attr.KindFloat, Access: attr.ReadOnly, Unit: "bar",
			Read: func(ctx context.Context) (attr.Value, error) {
				v, err := ad.Pressure(ctx)
				if err != nil {
					return attr.Value{}, err
				}
				metrics.SetPressure(v)
				return attr.Float(v), nil
			},
		},
	)
}
