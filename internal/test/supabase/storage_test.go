package supabase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"productshot-backend/internal/supabase"
)

func TestStorageClient_GetPublicURL(t *testing.T) {
	client, err := supabase.NewStorageClient("https://proj.supabase.co", "test-key", "generated-media")
	require.NoError(t, err)

	url := client.GetPublicURL("users/u1/projects/p1/product.png")

	assert.Equal(t,
		"https://proj.supabase.co/storage/v1/object/public/generated-media/users/u1/projects/p1/product.png",
		url)
}

func TestStorageClient_GetPublicURL_TrimsTrailingSlash(t *testing.T) {
	client, err := supabase.NewStorageClient("https://proj.supabase.co/", "test-key", "generated-media")
	require.NoError(t, err)

	url := client.GetPublicURL("users/u1/projects/p1/product.png")

	assert.Equal(t,
		"https://proj.supabase.co/storage/v1/object/public/generated-media/users/u1/projects/p1/product.png",
		url)
}
