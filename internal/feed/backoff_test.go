package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReconnectPolicy_DoublesToCap(t *testing.T) {
	p := NewReconnectPolicy(5*time.Second, 60*time.Second)

	want := []time.Duration{
		5 * time.Second,
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		60 * time.Second,
		60 * time.Second, // stays at the cap
	}
	for i, w := range want {
		assert.Equal(t, w, p.Next(), "attempt %d", i+1)
	}
}

func TestReconnectPolicy_ResetRestoresBase(t *testing.T) {
	p := NewReconnectPolicy(5*time.Second, 60*time.Second)

	for i := 0; i < 4; i++ {
		p.Next()
	}
	p.Reset()
	assert.Equal(t, 5*time.Second, p.Next())
}

func TestReconnectPolicy_Defaults(t *testing.T) {
	p := NewReconnectPolicy(0, 0)
	assert.Equal(t, DefaultReconnectBase, p.Next())
}
