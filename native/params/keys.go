package params

const (
	// ParamsKeyPauses stores the runtime module pause switches.
	ParamsKeyPauses = "params/pauses"
)
