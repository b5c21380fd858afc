package protocol

// Worker exit statuses understood by the dispatcher.
const (
	ExitOK     = 0
	ExitNoData = 1   // zero-length spool file, removed without sending
	ExitUsage  = 2   // bad invocation
	ExitFatal  = 100 // connect or transmit failure
)
