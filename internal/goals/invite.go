package goals

import (
	mathrand "math/rand"
	"sync"
	"time"
)

const (
	inviteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	inviteLength   = 6
)

var (
	inviteMu  sync.Mutex
	inviteRnd = mathrand.New(mathrand.NewSource(time.Now().UnixNano()))
)

// NewInviteCode returns a short human-enterable code. Uniqueness among
// groups is enforced by the service, which regenerates on collision.
func NewInviteCode() string {
	inviteMu.Lock()
	defer inviteMu.Unlock()
	buf := make([]byte, inviteLength)
	for i := range buf {
		buf[i] = inviteAlphabet[inviteRnd.Intn(len(inviteAlphabet))]
	}
	return string(buf)
}
