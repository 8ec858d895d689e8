package biometric

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

const defaultEmbeddingURL = "http://localhost:8000"

// EmbeddingClient talks to the face-embedding server
type EmbeddingClient struct {
	baseURL string
	client  *http.Client
}

// NewEmbeddingClient creates a new embedding client
func NewEmbeddingClient(baseURL string) *EmbeddingClient {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &EmbeddingClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// FaceDetection represents a single face found by the embedding server
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// ComputeFaceEmbeddings posts a JPEG to /embed/face and returns every face found.
func (c *EmbeddingClient) ComputeFaceEmbeddings(ctx context.Context, jpegData []byte) (*FaceResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="face.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(jpegData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed/face", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &faceResp, nil
}

// EmbeddingExtractor produces learned embeddings for a single located face.
type EmbeddingExtractor struct {
	locator FaceLocator
	client  *EmbeddingClient
	dim     int
}

// NewEmbeddingExtractor creates an extractor expecting dim-length embeddings.
func NewEmbeddingExtractor(locator FaceLocator, client *EmbeddingClient, dim int) *EmbeddingExtractor {
	return &EmbeddingExtractor{locator: locator, client: client, dim: dim}
}

// Strategy returns StrategyEmbedding.
func (e *EmbeddingExtractor) Strategy() Strategy {
	return StrategyEmbedding
}

// Extract crops the single face, sends it to the embedding server and
// requires exactly one embedding back.
func (e *EmbeddingExtractor) Extract(ctx context.Context, img image.Image) (FeatureVector, error) {
	region, err := locateSingle(e.locator, img)
	if err != nil {
		return nil, err
	}

	data, err := EncodeJPEG(CropFace(img, region, constants.FaceCropPadding))
	if err != nil {
		return nil, err
	}
	resp, err := e.client.ComputeFaceEmbeddings(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("computing face embedding: %w", err)
	}

	switch {
	case len(resp.Faces) == 0:
		return nil, ErrNoFaceDetected
	case len(resp.Faces) > 1:
		return nil, ErrMultipleFacesDetected
	}

	emb := resp.Faces[0].Embedding
	if len(emb) != e.dim {
		return nil, fmt.Errorf("%w: embedding has %d dimensions, expected %d", ErrInvalidFeatureVector, len(emb), e.dim)
	}
	vec := make(FeatureVector, len(emb))
	for i, x := range emb {
		vec[i] = float64(x)
	}
	if err := vec.Validate(); err != nil {
		return nil, err
	}
	return vec, nil
}
