package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshtalk/internal/domain"
	"meshtalk/internal/transport/memory"
)

func TestHub_SendReceive(t *testing.T) {
	hub := memory.NewHub()
	a := hub.Endpoint("a")
	b := hub.Endpoint("b")
	c := hub.Endpoint("c")

	ctx := context.Background()
	require.NoError(t, a.Send(ctx, "b", []byte("hi b")))
	require.NoError(t, a.Send(ctx, domain.Broadcast, []byte("hi all")))
	require.ErrorIs(t, a.Send(ctx, "z", []byte("nobody")), domain.ErrTransport)

	got := drain(t, b, 2)
	assert.Equal(t, []string{"a:hi b", "a:hi all"}, got)
	assert.Equal(t, []string{"a:hi all"}, drain(t, c, 1))
}

func TestHub_Duplicate(t *testing.T) {
	hub := memory.NewHub()
	a := hub.Endpoint("a")
	b := hub.Endpoint("b")
	hub.Duplicate(true)

	require.NoError(t, a.Send(context.Background(), "b", []byte("x")))
	assert.Equal(t, []string{"a:x", "a:x"}, drain(t, b, 2))
}

func drain(t *testing.T, tr *memory.Transport, n int) []string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan struct{})
	var got []string
	go func() {
		defer close(done)
		_ = tr.Receive(ctx, func(from domain.NodeID, p []byte) {
			got = append(got, string(from)+":"+string(p))
			if len(got) == n {
				cancel()
			}
		})
	}()
	<-done
	require.Len(t, got, n)
	return got
}
