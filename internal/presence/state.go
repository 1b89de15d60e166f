package presence

// State is the presence of a fan: NotPresent or Present. No other value
// is ever held or published.
type State uint8

const (
	NotPresent State = iota
	Present
)

// StateOf converts a boolean reading into a State.
func StateOf(present bool) State {
	if present {
		return Present
	}
	return NotPresent
}

// Bool reports whether s is Present.
func (s State) Bool() bool {
	return s == Present
}

func (s State) String() string {
	if s == Present {
		return "present"
	}
	return "not_present"
}
