package sweep

type State int

const (
	Idle State = iota
	Initializing
	AwaitingConfirmation
	Running
	Draining
	Safed
	Completed
	Aborted
	Failed
)

var stateNames = map[State]string{
	Idle:                 "idle",
	Initializing:         "initializing",
	AwaitingConfirmation: "awaiting_confirmation",
	Running:              "running",
	Draining:             "draining",
	Safed:                "safed",
	Completed:            "completed",
	Aborted:              "aborted",
	Failed:               "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == Completed || s == Aborted || s == Failed
}

// StateNames lists every state name, in lifecycle order.
func StateNames() []string {
	names := make([]string, 0, len(stateNames))
	for s := Idle; s <= Failed; s++ {
		names = append(names, s.String())
	}
	return names
}
