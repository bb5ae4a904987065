package core

// Process exit codes. Signal-based exits follow the Unix 128+signal
// convention.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
	ExitCodeSIGINT  = 130
	ExitCodeSIGTERM = 143
)
