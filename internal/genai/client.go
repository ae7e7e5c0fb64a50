package genai

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"
)

// Client talks to the Google Generative Language REST API. Image
// generation is a single synchronous generateContent call; video
// generation is a long-running operation that must be polled.
type Client struct {
	baseURL    string
	apiKey     string
	imageModel string
	videoModel string
	httpClient *http.Client
}

type InlineImage struct {
	MimeType string
	Data     []byte
}

type ImageRequest struct {
	Images      []InlineImage
	Prompt      string
	AspectRatio string
}

type GeneratedImage struct {
	MimeType string
	Data     []byte
}

type VideoRequest struct {
	Image           InlineImage
	Prompt          string
	AspectRatio     string
	DurationSeconds int
}

type VideoOperation struct {
	Name     string
	Done     bool
	VideoURI string
	ErrorMsg string
}

type inlineDataPayload struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type contentPart struct {
	Text       string             `json:"text,omitempty"`
	InlineData *inlineDataPayload `json:"inlineData,omitempty"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type generationConfig struct {
	MaxOutputTokens    int          `json:"maxOutputTokens,omitempty"`
	Temperature        float64      `json:"temperature,omitempty"`
	TopP               float64      `json:"topP,omitempty"`
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type generateContentRequest struct {
	Contents []struct {
		Parts []contentPart `json:"parts"`
	} `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
	SafetySettings   []safetySetting  `json:"safetySettings,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []contentPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Safety blocking is disabled for all categories; moderation happens
// downstream of this service, not at the provider.
var safetyOff = []safetySetting{
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "OFF"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "OFF"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "OFF"},
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "OFF"},
}

func NewClient(baseURL, apiKey, imageModel, videoModel string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		imageModel: imageModel,
		videoModel: videoModel,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// GenerateImage sends the reference images and prompt to the image model
// and returns the first inline image payload from the response.
func (c *Client) GenerateImage(genReq ImageRequest) (*GeneratedImage, error) {
	var req generateContentRequest
	req.Contents = make([]struct {
		Parts []contentPart `json:"parts"`
	}, 1)

	for _, img := range genReq.Images {
		req.Contents[0].Parts = append(req.Contents[0].Parts, contentPart{
			InlineData: &inlineDataPayload{
				MimeType: img.MimeType,
				Data:     base64.StdEncoding.EncodeToString(img.Data),
			},
		})
	}
	req.Contents[0].Parts = append(req.Contents[0].Parts, contentPart{Text: genReq.Prompt})

	req.GenerationConfig = generationConfig{
		MaxOutputTokens:    32768,
		Temperature:        1,
		TopP:               0.95,
		ResponseModalities: []string{"IMAGE"},
		ImageConfig: &imageConfig{
			AspectRatio: genReq.AspectRatio,
			ImageSize:   "1K",
		},
	}
	req.SafetySettings = safetyOff

	var result generateContentResponse
	url := c.modelURL(c.imageModel, "generateContent")
	if err := c.postJSON(url, req, &result); err != nil {
		return nil, fmt.Errorf("failed to generate image: %w", err)
	}

	for _, candidate := range result.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to decode image payload: %w", err)
			}
			return &GeneratedImage{MimeType: part.InlineData.MimeType, Data: data}, nil
		}
	}

	return nil, fmt.Errorf("no image in model response")
}

type predictLongRunningRequest struct {
	Instances []struct {
		Prompt string `json:"prompt"`
		Image  struct {
			BytesBase64Encoded string `json:"bytesBase64Encoded"`
			MimeType           string `json:"mimeType"`
		} `json:"image"`
	} `json:"instances"`
	Parameters struct {
		AspectRatio     string `json:"aspectRatio,omitempty"`
		Resolution      string `json:"resolution,omitempty"`
		SampleCount     int    `json:"sampleCount,omitempty"`
		DurationSeconds int    `json:"durationSeconds,omitempty"`
	} `json:"parameters"`
}

type operationResponse struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

// StartVideoGeneration submits a video job and returns the operation name
// to poll with GetVideoOperation.
func (c *Client) StartVideoGeneration(genReq VideoRequest) (string, error) {
	var req predictLongRunningRequest
	req.Instances = make([]struct {
		Prompt string `json:"prompt"`
		Image  struct {
			BytesBase64Encoded string `json:"bytesBase64Encoded"`
			MimeType           string `json:"mimeType"`
		} `json:"image"`
	}, 1)
	req.Instances[0].Prompt = genReq.Prompt
	req.Instances[0].Image.BytesBase64Encoded = base64.StdEncoding.EncodeToString(genReq.Image.Data)
	req.Instances[0].Image.MimeType = genReq.Image.MimeType
	req.Parameters.AspectRatio = genReq.AspectRatio
	req.Parameters.Resolution = "720p"
	req.Parameters.SampleCount = 1
	req.Parameters.DurationSeconds = genReq.DurationSeconds

	var result operationResponse
	url := c.modelURL(c.videoModel, "predictLongRunning")
	if err := c.postJSON(url, req, &result); err != nil {
		return "", fmt.Errorf("failed to start video generation: %w", err)
	}

	if result.Name == "" {
		return "", fmt.Errorf("operation name is empty in response")
	}

	return result.Name, nil
}

// GetVideoOperation fetches the current state of a long-running video job.
func (c *Client) GetVideoOperation(name string) (*VideoOperation, error) {
	url := strings.TrimSuffix(c.baseURL, "/") + "/" + strings.TrimPrefix(name, "/")
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get operation: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result operationResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	op := &VideoOperation{Name: result.Name, Done: result.Done}
	if result.Error != nil {
		op.ErrorMsg = result.Error.Message
	}
	if result.Response != nil && len(result.Response.GenerateVideoResponse.GeneratedSamples) > 0 {
		op.VideoURI = result.Response.GenerateVideoResponse.GeneratedSamples[0].Video.URI
	}

	return op, nil
}

// DownloadFile fetches an artifact by URI. Video operations return URIs on
// the provider's host, but stored media lives elsewhere; the API key is
// only attached when the URI targets the provider.
func (c *Client) DownloadFile(uri string) ([]byte, error) {
	req, err := http.NewRequest("GET", uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if base, parseErr := neturl.Parse(c.baseURL); parseErr == nil && base.Host == req.URL.Host {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to download file: status %d, body: %s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func (c *Client) modelURL(model, method string) string {
	return strings.TrimSuffix(c.baseURL, "/") + "/models/" + model + ":" + method
}

func (c *Client) postJSON(url string, reqBody interface{}, out interface{}) error {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}

	return nil
}

// RetryWithBackoff executes a function with exponential backoff retry logic
func RetryWithBackoff(fn func() error, maxRetries int) error {
	backoffs := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if i < len(backoffs) {
			time.Sleep(backoffs[i])
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
