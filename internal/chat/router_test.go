package chat_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/roomchat/internal/chat"
	"github.com/omochice/roomchat/pkg/protocol"
)

func roomEnvelope(content string) chat.Envelope {
	return chat.ToRoom("general", protocol.NewMessage("alice", content, "general", time.Time{}))
}

func TestRouter_PublishOrder(t *testing.T) {
	router := chat.NewRouter(8)
	first := router.Subscribe()
	second := router.Subscribe()

	for _, c := range []string{"a", "b", "c"} {
		router.Publish(roomEnvelope(c))
	}

	for _, sub := range []*chat.Subscription{first, second} {
		for _, want := range []string{"a", "b", "c"} {
			env, err := sub.TryRecv()
			require.NoError(t, err)
			assert.Equal(t, want, env.Event.Content)
		}
		_, err := sub.TryRecv()
		assert.ErrorIs(t, err, chat.ErrEmpty)
	}
}

func TestRouter_SubscribeSeesOnlyLaterPublishes(t *testing.T) {
	router := chat.NewRouter(8)
	router.Publish(roomEnvelope("before"))

	sub := router.Subscribe()
	router.Publish(roomEnvelope("after"))

	env, err := sub.TryRecv()
	require.NoError(t, err)
	assert.Equal(t, "after", env.Event.Content)
	_, err = sub.TryRecv()
	assert.ErrorIs(t, err, chat.ErrEmpty)
}

func TestRouter_LaggedSubscriberResyncs(t *testing.T) {
	router := chat.NewRouter(4)
	sub := router.Subscribe()

	// publishers never block even though nobody reads
	for i := 0; i < 10; i++ {
		router.Publish(roomEnvelope(string(rune('a' + i))))
	}

	_, err := sub.TryRecv()
	var lagged *chat.LaggedError
	require.True(t, errors.As(err, &lagged))
	assert.Equal(t, uint64(6), lagged.Skipped)
	assert.ErrorIs(t, err, chat.ErrLagged)

	for _, want := range []string{"g", "h", "i", "j"} {
		env, err := sub.TryRecv()
		require.NoError(t, err)
		assert.Equal(t, want, env.Event.Content)
	}
	_, err = sub.TryRecv()
	assert.ErrorIs(t, err, chat.ErrEmpty)
}

func TestSubscription_Ready(t *testing.T) {
	router := chat.NewRouter(4)
	sub := router.Subscribe()

	ready := sub.Ready()
	select {
	case <-ready:
		t.Fatal("ready before publish")
	default:
	}

	router.Publish(roomEnvelope("x"))
	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("ready channel not closed after publish")
	}

	select {
	case <-sub.Ready():
	default:
		t.Fatal("pending envelope not reported ready")
	}
}

func TestSubscription_Recv(t *testing.T) {
	router := chat.NewRouter(4)
	sub := router.Subscribe()

	go func() {
		time.Sleep(20 * time.Millisecond)
		router.Publish(roomEnvelope("late"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	env, err := sub.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "late", env.Event.Content)

	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	_, err = sub.Recv(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEnvelope_Matches(t *testing.T) {
	event := protocol.Error("x")
	tests := []struct {
		name string
		env  chat.Envelope
		user string
		room string
		want bool
	}{
		{"user target matches", chat.ToUser("u1", event), "u1", "general", true},
		{"user target other", chat.ToUser("u1", event), "u2", "general", false},
		{"room target matches", chat.ToRoom("general", event), "u2", "general", true},
		{"room target other room", chat.ToRoom("general", event), "u2", "go", false},
		{"room target no room", chat.ToRoom("general", event), "u2", "", false},
		{"everyone", chat.ToEveryone(event), "u3", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.env.Matches(tt.user, tt.room))
		})
	}
}
