package api

// State is a lifecycle state of the driver.
type State int

// The states of a compute cycle, in order. A finished cycle returns to
// StateConfigured.
const (
	StateReset State = iota
	StateConfigured
	StateWeightsLoaded
	StateActivationsLoaded
	StateComputing
	StateOutputRequested
	StateOutputReady
)

func (s State) String() string {
	switch s {
	case StateReset:
		return "Reset"
	case StateConfigured:
		return "Configured"
	case StateWeightsLoaded:
		return "WeightsLoaded"
	case StateActivationsLoaded:
		return "ActivationsLoaded"
	case StateComputing:
		return "Computing"
	case StateOutputRequested:
		return "OutputRequested"
	case StateOutputReady:
		return "OutputReady"
	default:
		panic("invalid state")
	}
}
