package box

// State is a machine's lifecycle state.
type State int

const (
	Unprovisioned State = iota
	Booting
	Running
	Halted
	Packaged
	Destroyed
	Failed
)

var stateNames = map[State]string{
	Unprovisioned: "unprovisioned",
	Booting:       "booting",
	Running:       "running",
	Halted:        "halted",
	Packaged:      "packaged",
	Destroyed:     "destroyed",
	Failed:        "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsTerminal returns true for states no operation can leave.
func (s State) IsTerminal() bool {
	return s == Packaged || s == Destroyed
}

// Operation names a lifecycle operation.
type Operation string

const (
	OpUp      Operation = "up"
	OpHalt    Operation = "halt"
	OpReload  Operation = "reload"
	OpModify  Operation = "modify"
	OpPackage Operation = "package"
	OpConnect Operation = "connect"
	OpDestroy Operation = "destroy"
)

var allowed = map[Operation][]State{
	OpUp:      {Unprovisioned, Halted},
	OpHalt:    {Running},
	OpReload:  {Running},
	OpModify:  {Unprovisioned, Halted},
	OpPackage: {Halted},
	OpConnect: {Running},
	OpDestroy: {Unprovisioned, Booting, Running, Halted, Failed},
}

// CanApply reports whether op is legal in state s.
func CanApply(op Operation, s State) bool {
	for _, from := range allowed[op] {
		if from == s {
			return true
		}
	}
	return false
}
