package dirminify

// State is a stage of a Process run.
type State int

const (
	StateInit State = iota
	StateLoadingStore
	StateScanning
	StateProcessing
	StatePersisting
	StateDone
	StateError
)

var stateNames = [...]string{
	StateInit:         "INIT",
	StateLoadingStore: "LOADING_STORE",
	StateScanning:     "SCANNING",
	StateProcessing:   "PROCESSING",
	StatePersisting:   "PERSISTING",
	StateDone:         "DONE",
	StateError:        "ERROR",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
