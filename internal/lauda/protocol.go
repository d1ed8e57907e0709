package lauda

import (
	"fmt"
	"strconv"
	"strings"
)

// Command strings of the Lauda LRZ line protocol as spoken by the T2200.
// Each command is sent as a single ASCII line terminated CRLF; the instrument
// answers with exactly one line.
const (
	CmdBathTemp = "IN_PV_00"   // bath temperature, degrees C
	CmdPressure = "IN_PV_02"   // pump pressure, bar
	CmdSetpoint = "IN_SP_00"   // temperature setpoint, degrees C
	CmdStatus   = "STATUS"     // 0 = ok, -1 = alarm
	CmdStat     = "STAT"       // diagnostic bit string
	CmdMode     = "IN_MODE_02" // 0 = running, 1 = standby
	CmdStart    = "START"      // power on
	CmdStop     = "STOP"       // power off

	setpointPrefix = "OUT_SP_00_"
)

// SetpointCommand builds the setpoint write command for v degrees C.
func SetpointCommand(v float64) string {
	return setpointPrefix + strconv.FormatFloat(v, 'f', 2, 64)
}

// ParseFloat parses a numeric response line.
func ParseFloat(resp string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(resp), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: not a number: %q", ErrProtocol, resp)
	}
	return v, nil
}

// ParseAlarm interprets a STATUS response. It returns true when the
// instrument reports an alarm condition (-1) and false when healthy (0).
func ParseAlarm(resp string) (bool, error) {
	v, err := ParseFloat(resp)
	if err != nil {
		return false, err
	}
	switch int(v) {
	case 0:
		return false, nil
	case -1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: unexpected STATUS code: %q", ErrProtocol, resp)
	}
}

// ParseMode interprets an IN_MODE_02 response. The instrument reports 0 when
// the circulation pump is running and 1 in standby.
func ParseMode(resp string) (on bool, err error) {
	v, err := ParseFloat(resp)
	if err != nil {
		return false, err
	}
	switch int(v) {
	case 0:
		return true, nil
	case 1:
		return false, nil
	default:
		return false, fmt.Errorf("%w: unexpected mode: %q", ErrProtocol, resp)
	}
}
