package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAvatarStore(t *testing.T) {
	store := NewMemoryAvatarStore()
	ctx := context.Background()

	url, err := store.Put(ctx, "user-1", strings.NewReader("png bytes"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/avatars/user-1", url)

	data, ok := store.Get("user-1")
	require.True(t, ok)
	assert.Equal(t, "png bytes", string(data))

	// A second upload replaces the first
	_, err = store.Put(ctx, "user-1", strings.NewReader("new bytes"), "image/png")
	require.NoError(t, err)
	data, _ = store.Get("user-1")
	assert.Equal(t, "new bytes", string(data))

	require.NoError(t, store.Delete(ctx, "user-1"))
	_, ok = store.Get("user-1")
	assert.False(t, ok)

	// Deleting an absent avatar is a no-op
	assert.NoError(t, store.Delete(ctx, "user-1"))
}

func TestS3PublicURL(t *testing.T) {
	s := &S3AvatarStore{bucket: "taskhub-avatars", region: "us-east-1"}
	assert.Equal(t,
		"https://taskhub-avatars.s3.us-east-1.amazonaws.com/avatars/user-1",
		s.publicURL(avatarKey("user-1")),
	)

	s = &S3AvatarStore{bucket: "taskhub-avatars", endpoint: "http://localhost:9000/"}
	assert.Equal(t,
		"http://localhost:9000/taskhub-avatars/avatars/user-1",
		s.publicURL(avatarKey("user-1")),
	)
}
