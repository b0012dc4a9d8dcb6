package channels

import "time"

// TrySend delivers msg only if ch can take it right now.
func TrySend[T any](ch chan<- T, msg T) (err error) {
	defer recoverClosed(&err)

	select {
	case ch <- msg:
		return nil
	default:
		return ErrChannelFull
	}
}

// SendWithin waits up to timeout for ch to take msg. A non-positive timeout
// behaves like TrySend.
func SendWithin[T any](ch chan<- T, msg T, timeout time.Duration) (err error) {
	if timeout <= 0 {
		return TrySend(ch, msg)
	}

	defer recoverClosed(&err)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- msg:
		return nil
	case <-timer.C:
		return ErrChannelTimeout
	}
}

// recoverClosed turns the panic from sending on a closed channel into
// ErrChannelClosed.
func recoverClosed(err *error) {
	if r := recover(); r != nil {
		*err = ErrChannelClosed
	}
}
