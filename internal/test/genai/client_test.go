package genai_test

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"productshot-backend/internal/genai"
)

func TestRetryWithBackoff(t *testing.T) {
	callCount := 0
	err := genai.RetryWithBackoff(func() error {
		callCount++
		if callCount < 3 {
			return assert.AnError
		}
		return nil
	}, 3)

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestRetryWithBackoff_Exhausted(t *testing.T) {
	err := genai.RetryWithBackoff(func() error {
		return assert.AnError
	}, 3)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 retries")
}

func TestClient_GenerateImage(t *testing.T) {
	imageBytes := []byte("generated-png")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/models/image-model:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "contents")
		assert.Contains(t, body, "safetySettings")

		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{
					"content": map[string]interface{}{
						"parts": []map[string]interface{}{
							{"text": "here is your image"},
							{"inlineData": map[string]string{
								"mimeType": "image/png",
								"data":     base64.StdEncoding.EncodeToString(imageBytes),
							}},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := genai.NewClient(server.URL, "test-key", "image-model", "video-model")
	result, err := client.GenerateImage(genai.ImageRequest{
		Images: []genai.InlineImage{
			{MimeType: "image/jpeg", Data: []byte("product")},
			{MimeType: "image/jpeg", Data: []byte("model")},
		},
		Prompt:      "compose the shot",
		AspectRatio: "9:16",
	})

	require.NoError(t, err)
	assert.Equal(t, "image/png", result.MimeType)
	assert.Equal(t, imageBytes, result.Data)
}

func TestClient_GenerateImage_NoImageInResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{
					"content": map[string]interface{}{
						"parts": []map[string]interface{}{
							{"text": "refused"},
						},
					},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := genai.NewClient(server.URL, "test-key", "image-model", "video-model")
	_, err := client.GenerateImage(genai.ImageRequest{
		Images: []genai.InlineImage{{MimeType: "image/png", Data: []byte("x")}},
		Prompt: "compose the shot",
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no image in model response")
}

func TestClient_StartVideoGeneration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/video-model:predictLongRunning", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "instances")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"name": "models/video-model/operations/op-42",
		})
	}))
	defer server.Close()

	client := genai.NewClient(server.URL, "test-key", "image-model", "video-model")
	name, err := client.StartVideoGeneration(genai.VideoRequest{
		Image:           genai.InlineImage{MimeType: "image/png", Data: []byte("frame")},
		Prompt:          "animate it",
		AspectRatio:     "9:16",
		DurationSeconds: 5,
	})

	require.NoError(t, err)
	assert.Equal(t, "models/video-model/operations/op-42", name)
}

func TestClient_GetVideoOperation_Pending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/video-model/operations/op-42", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"name": "models/video-model/operations/op-42",
			"done": false,
		})
	}))
	defer server.Close()

	client := genai.NewClient(server.URL, "test-key", "image-model", "video-model")
	op, err := client.GetVideoOperation("models/video-model/operations/op-42")

	require.NoError(t, err)
	assert.False(t, op.Done)
	assert.Empty(t, op.VideoURI)
}

func TestClient_GetVideoOperation_Done(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"name": "models/video-model/operations/op-42",
			"done": true,
			"response": map[string]interface{}{
				"generateVideoResponse": map[string]interface{}{
					"generatedSamples": []map[string]interface{}{
						{"video": map[string]string{"uri": "https://files.test/video-1"}},
					},
				},
			},
		})
	}))
	defer server.Close()

	client := genai.NewClient(server.URL, "test-key", "image-model", "video-model")
	op, err := client.GetVideoOperation("models/video-model/operations/op-42")

	require.NoError(t, err)
	assert.True(t, op.Done)
	assert.Equal(t, "https://files.test/video-1", op.VideoURI)
	assert.Empty(t, op.ErrorMsg)
}

func TestClient_DownloadFile_SendsKeyOnlyToProvider(t *testing.T) {
	var providerKey, mediaKey string

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		providerKey = r.Header.Get("x-goog-api-key")
		w.Write([]byte("video-bytes"))
	}))
	defer provider.Close()

	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaKey = r.Header.Get("x-goog-api-key")
		w.Write([]byte("image-bytes"))
	}))
	defer media.Close()

	client := genai.NewClient(provider.URL, "test-key", "image-model", "video-model")

	data, err := client.DownloadFile(provider.URL + "/files/video-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("video-bytes"), data)
	assert.Equal(t, "test-key", providerKey)

	// Stored media lives on a different host and must not see the key
	data, err = client.DownloadFile(media.URL + "/storage/v1/object/public/bucket/generated.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), data)
	assert.Empty(t, mediaKey)
}

func TestClient_GetVideoOperation_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"name": "models/video-model/operations/op-42",
			"done": true,
			"error": map[string]interface{}{
				"code":    400,
				"message": "content rejected",
			},
		})
	}))
	defer server.Close()

	client := genai.NewClient(server.URL, "test-key", "image-model", "video-model")
	op, err := client.GetVideoOperation("models/video-model/operations/op-42")

	require.NoError(t, err)
	assert.True(t, op.Done)
	assert.Equal(t, "content rejected", op.ErrorMsg)
}
