package signalhub

import "fmt"

// TooManySubscribersError is returned by Subscribe when a cell already carries
// its configured maximum number of callbacks. It is recoverable: the caller
// may drop an old subscription and retry.
type TooManySubscribersError struct {
	Signal SignalID
	Max    int
}

func (e *TooManySubscribersError) Error() string {
	return fmt.Sprintf("signalhub: %v already has the maximum of %d subscribers", e.Signal, e.Max)
}

// TooManySignalsError is returned by CreateSignal when the runtime already
// holds its configured maximum number of cells. Hitting it almost always
// means cells are being leaked rather than removed.
type TooManySignalsError struct {
	Max int
}

func (e *TooManySignalsError) Error() string {
	return fmt.Sprintf("signalhub: runtime already holds the maximum of %d signals", e.Max)
}
