package proxy

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTargetHolderWriteOnce(t *testing.T) {
	h := NewTargetHolder()

	_, ok := h.Get()
	assert.False(t, ok)

	assert.True(t, h.Set(ChatTarget{Host: "a", Port: 1}))
	assert.False(t, h.Set(ChatTarget{Host: "b", Port: 2}))

	got, ok := h.Get()
	require.True(t, ok)
	assert.Equal(t, ChatTarget{Host: "a", Port: 1}, got)
}

func TestAwaitTargetBuffersEarlyBytes(t *testing.T) {
	holder := NewTargetHolder()
	p := NewChatProxy(nil, nil, holder)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	// The client writes before the config fetch has revealed the target.
	go func() {
		client.Write([]byte("<?xml version='1.0'?>"))
		client.Write([]byte("<stream:stream>"))
		time.Sleep(250 * time.Millisecond)
		holder.Set(ChatTarget{Host: "chat.example.com", Port: 5223})
	}()

	pending, target, err := p.awaitTarget(server)
	require.NoError(t, err)
	assert.Equal(t, ChatTarget{Host: "chat.example.com", Port: 5223}, target)
	assert.Equal(t, "<?xml version='1.0'?><stream:stream>", string(pending))
}

func TestAwaitTargetClientGone(t *testing.T) {
	holder := NewTargetHolder()
	p := NewChatProxy(nil, nil, holder)

	client, server := net.Pipe()
	defer server.Close()
	client.Close()

	_, _, err := p.awaitTarget(server)
	assert.Error(t, err)
}
