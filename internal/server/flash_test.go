package web

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFlashSurvivesNewConnection(t *testing.T) {
	f := newFlashes()

	post := httptest.NewRequest("POST", "/add", nil)
	post.RemoteAddr = "10.0.0.7:51000"
	f.set(post, "Saved it")

	// the redirect arrives from another ephemeral port
	get := httptest.NewRequest("GET", "/", nil)
	get.RemoteAddr = "10.0.0.7:51002"
	assert.Equal(t, "Saved it", f.pop(get))
	assert.Empty(t, f.pop(get))
}

func TestFlashIgnoresForwardedHeader(t *testing.T) {
	f := newFlashes()

	spoofed := httptest.NewRequest("POST", "/add", nil)
	spoofed.RemoteAddr = "10.0.0.8:40000"
	spoofed.Header.Set("X-Forwarded-For", "10.0.0.7")
	f.set(spoofed, "not yours")

	victim := httptest.NewRequest("GET", "/", nil)
	victim.RemoteAddr = "10.0.0.7:40001"
	assert.Empty(t, f.pop(victim))

	owner := httptest.NewRequest("GET", "/", nil)
	owner.RemoteAddr = "10.0.0.8:40002"
	assert.Equal(t, "not yours", f.pop(owner))
}

func TestFlashExpires(t *testing.T) {
	f := newFlashes()
	now := time.Now()
	f.now = func() time.Time { return now }

	stale := httptest.NewRequest("POST", "/add", nil)
	stale.RemoteAddr = "10.0.0.1:1000"
	f.set(stale, "old news")

	now = now.Add(2 * flashTTL)
	fresh := httptest.NewRequest("POST", "/add", nil)
	fresh.RemoteAddr = "10.0.0.2:1000"
	f.set(fresh, "new")

	assert.Len(t, f.messages, 1, "expired messages are pruned")
	assert.Empty(t, f.pop(stale))
	assert.Equal(t, "new", f.pop(fresh))
}
