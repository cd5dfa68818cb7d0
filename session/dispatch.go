package session

import "signnet/backend"

// Confidence a prediction must exceed before it is kept in the history.
const (
	StaticThreshold  = 0.7
	DynamicThreshold = 0.6
)

// Placeholder is shown in a slot that holds no current prediction.
const Placeholder = "-"

// Slot is what one result panel shows: text, confidence bar fraction, and whether
// it produced the latest prediction.
type Slot struct {
	Text     string
	Fraction float64
	Active   bool
}

type Display struct {
	Static  Slot
	Dynamic Slot
}

func NewDisplay() Display {
	return Display{
		Static:  Slot{Text: Placeholder},
		Dynamic: Slot{Text: Placeholder},
	}
}

type submission struct {
	category   Category
	text       string
	confidence float64
}

// apply updates the display for p and returns the history candidate, if any.
// Unknown prediction types only clear the active flags.
func (d *Display) apply(p backend.Prediction) (submission, bool) {
	d.Static.Active = false
	d.Dynamic.Active = false

	switch p.Type {
	case backend.KindStatic:
		d.Static = Slot{Text: p.Text, Fraction: clampFraction(p.Confidence), Active: true}
		d.Dynamic = Slot{Text: Placeholder}
		if p.Confidence > StaticThreshold {
			return submission{Letter, p.Text, p.Confidence}, true
		}
	case backend.KindDynamic:
		d.Dynamic = Slot{Text: p.Text, Fraction: clampFraction(p.Confidence), Active: true}
		d.Static = Slot{Text: Placeholder}
		if p.Confidence > DynamicThreshold {
			return submission{Word, p.Text, p.Confidence}, true
		}
	}
	return submission{}, false
}

func clampFraction(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
