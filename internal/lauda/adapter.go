package lauda

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/igbemx/dev-softimax-lauda-t2200/internal/logging"
)

// setpointTolerance bounds the acceptable difference between a written
// setpoint and its confirmation readback.
const setpointTolerance = 0.05

// Exchanger performs one serialized command/response exchange with the
// instrument. *serial.Transport implements it; tests substitute fakes.
type Exchanger interface {
	Exchange(ctx context.Context, cmd string) (string, error)
}

// Adapter translates typed attribute access into Lauda protocol exchanges.
// Each call is an independent synchronous request/response; nothing is cached.
type Adapter struct {
	ex    Exchanger
	state atomic.Int32
}

// NewAdapter wraps an Exchanger. The device state starts at INIT.
func NewAdapter(ex Exchanger) *Adapter {
	a := &Adapter{ex: ex}
	a.state.Store(int32(StateInit))
	return a
}

// State returns the last observed coarse device state.
func (a *Adapter) State() State { return State(a.state.Load()) }

func (a *Adapter) setState(s State) { a.state.Store(int32(s)) }

// Probe issues the startup STATUS check. An alarm response moves the device
// to FAULT, a healthy one to ON. Exchange failures also leave it in FAULT.
func (a *Adapter) Probe(ctx context.Context) error {
	resp, err := a.ex.Exchange(ctx, CmdStatus)
	if err != nil {
		a.setState(StateFault)
		return err
	}
	alarm, err := ParseAlarm(resp)
	if err != nil {
		a.setState(StateFault)
		return err
	}
	if alarm {
		a.setState(StateFault)
		logging.L().Error("chiller_alarm")
		return nil
	}
	a.setState(StateOn)
	return nil
}

// BathTemp reads the current bath temperature in degrees C.
func (a *Adapter) BathTemp(ctx context.Context) (float64, error) {
	return a.readFloat(ctx, CmdBathTemp)
}

// Pressure reads the current pump pressure in bar.
func (a *Adapter) Pressure(ctx context.Context) (float64, error) {
	return a.readFloat(ctx, CmdPressure)
}

// Setpoint reads the active temperature setpoint in degrees C.
func (a *Adapter) Setpoint(ctx context.Context) (float64, error) {
	return a.readFloat(ctx, CmdSetpoint)
}

func (a *Adapter) readFloat(ctx context.Context, cmd string) (float64, error) {
	resp, err := a.ex.Exchange(ctx, cmd)
	if err != nil {
		return 0, err
	}
	return ParseFloat(resp)
}

// SetSetpoint writes a new setpoint and confirms it by reading it back.
// The confirmed value is returned; a readback off by more than the tolerance
// is a protocol error.
func (a *Adapter) SetSetpoint(ctx context.Context, v float64) (float64, error) {
	if _, err := a.ex.Exchange(ctx, SetpointCommand(v)); err != nil {
		return 0, err
	}
	got, err := a.Setpoint(ctx)
	if err != nil {
		return 0, err
	}
	if math.Abs(got-v) > setpointTolerance {
		return got, fmt.Errorf("%w: setpoint not accepted: wrote %.2f, read %.2f", ErrProtocol, v, got)
	}
	logging.L().Info("setpoint_changed", "value", got)
	return got, nil
}

// Status performs the alarm check and returns the diagnostic status string.
func (a *Adapter) Status(ctx context.Context) (string, error) {
	resp, err := a.ex.Exchange(ctx, CmdStatus)
	if err != nil {
		return "", err
	}
	alarm, err := ParseAlarm(resp)
	if err != nil {
		return "", err
	}
	if alarm {
		a.setState(StateFault)
		logging.L().Error("chiller_alarm")
	}
	stat, err := a.ex.Exchange(ctx, CmdStat)
	if err != nil {
		return "", err
	}
	return stat, nil
}

// IsOn reports whether the circulation pump is running.
func (a *Adapter) IsOn(ctx context.Context) (bool, error) {
	resp, err := a.ex.Exchange(ctx, CmdMode)
	if err != nil {
		return false, err
	}
	on, err := ParseMode(resp)
	if err != nil {
		return false, err
	}
	if on {
		a.setState(StateRunning)
	}
	return on, nil
}

// SetOn powers the chiller on or off. Exactly one START or STOP line is
// written per call; the acknowledgement line is consumed.
func (a *Adapter) SetOn(ctx context.Context, on bool) error {
	cmd := CmdStop
	if on {
		cmd = CmdStart
	}
	resp, err := a.ex.Exchange(ctx, cmd)
	if err != nil {
		return err
	}
	if on {
		a.setState(StateRunning)
	} else {
		a.setState(StateOn)
	}
	logging.L().Info("power_toggled", "on", on, "response", resp)
	return nil
}
