package session

import "fmt"

// Mode is the recognition strategy requested from the backend.
type Mode int

const (
	ModeAuto Mode = iota
	ModeStatic
	ModeDynamic
)

// Next follows the fixed cycle auto -> static -> dynamic -> auto.
func (m Mode) Next() Mode {
	switch m {
	case ModeAuto:
		return ModeStatic
	case ModeStatic:
		return ModeDynamic
	default:
		return ModeAuto
	}
}

// String is the value sent as the set_mode query parameter.
func (m Mode) String() string {
	switch m {
	case ModeStatic:
		return "static"
	case ModeDynamic:
		return "dynamic"
	default:
		return "auto"
	}
}

func (m Mode) Label() string {
	switch m {
	case ModeStatic:
		return "Static Mode"
	case ModeDynamic:
		return "Dynamic Mode"
	default:
		return "Auto Mode"
	}
}

func (m Mode) Icon() string {
	switch m {
	case ModeStatic:
		return "Aa"
	case ModeDynamic:
		return "💬"
	default:
		return "⇄"
	}
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "auto":
		return ModeAuto, nil
	case "static":
		return ModeStatic, nil
	case "dynamic":
		return ModeDynamic, nil
	}
	return ModeAuto, fmt.Errorf("unknown mode %q (use auto, static or dynamic)", s)
}
