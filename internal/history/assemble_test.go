package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildRequest(t *testing.T) {
	h := sample.Clone()

	req := BuildRequest(h, "hello")
	require.Len(t, req, len(h)+1)
	require.Equal(t, Message{Role: RoleUser, Content: "hello"}, req[len(req)-1])
	require.Equal(t, []Message(sample), req[:len(h)])

	// history is untouched
	require.Equal(t, sample, h)
}

func TestBuildRequest_DoesNotAliasSpareCapacity(t *testing.T) {
	h := make(Conversation, 1, 8)
	h[0] = Message{Role: RoleSystem, Content: "s"}

	a := BuildRequest(h, "first")
	b := BuildRequest(h, "second")
	require.Equal(t, "first", a[1].Content)
	require.Equal(t, "second", b[1].Content)
	require.Len(t, h, 1)
}

func TestBuildRequest_StoreUnaffectedUntilSave(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("")
	h, err := s.Load(ctx)
	require.NoError(t, err)

	_ = BuildRequest(h, "hello")

	again, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, again, 1)
}

func TestBuildRecord(t *testing.T) {
	user, assistant := BuildRecord("hi", "hello back")
	require.Equal(t, []Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello back"},
	}, []Message{user, assistant})
}
