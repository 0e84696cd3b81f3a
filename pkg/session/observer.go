package session

import "time"

// Observer receives session events. Implementations must be safe for
// concurrent use; they are called from the requesting goroutine.
type Observer interface {
	ClientCreated(key ClientKey)
	ClientReused(key ClientKey)
	RequestDone(method string, status int, elapsed time.Duration)
	RequestFailed(method string, kind Kind, elapsed time.Duration)
	CookiesUpdated(stored, total int)
}

type nopObserver struct{}

func (nopObserver) ClientCreated(ClientKey)                   {}
func (nopObserver) ClientReused(ClientKey)                    {}
func (nopObserver) RequestDone(string, int, time.Duration)    {}
func (nopObserver) RequestFailed(string, Kind, time.Duration) {}
func (nopObserver) CookiesUpdated(int, int)                   {}
