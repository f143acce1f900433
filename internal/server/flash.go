package web

import (
	"net"
	"net/http"
	"sync"
	"time"
)

const flashTTL = time.Minute

type flash struct {
	message string
	setAt   time.Time
}

// flashes holds one pending message per client host, shown on the next page
// load. Messages nobody picks up expire after flashTTL.
type flashes struct {
	mu       sync.Mutex
	messages map[string]flash
	now      func() time.Time
}

func newFlashes() *flashes {
	return &flashes{messages: make(map[string]flash), now: time.Now}
}

// set stores a message for the client behind r.
func (f *flashes) set(r *http.Request, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	for k, m := range f.messages {
		if now.Sub(m.setAt) > flashTTL {
			delete(f.messages, k)
		}
	}
	f.messages[clientKey(r)] = flash{message: message, setAt: now}
}

// pop retrieves and immediately deletes a message
func (f *flashes) pop(r *http.Request) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := clientKey(r)
	m, ok := f.messages[key]
	if !ok {
		return ""
	}
	delete(f.messages, key)
	if f.now().Sub(m.setAt) > flashTTL {
		return ""
	}
	return m.message
}

// clientKey is the remote host without its port, so the redirect that
// follows a form post finds the message on a new connection.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
