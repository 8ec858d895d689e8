package biometric

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/imagestore"
)

const testImageSize = 64

// Marker values of the top-left pixel understood by markerLocator.
const (
	markerFace      = 128
	markerNoFace    = 0
	markerTwoFaces  = 255
	markerBadRegion = 64
)

// markerLocator finds one face covering the image unless the top-left
// pixel says otherwise. It is stateless and safe for concurrent use.
type markerLocator struct{}

func (markerLocator) Locate(img image.Image) ([]FaceRegion, error) {
	b := img.Bounds()
	g := color.GrayModel.Convert(img.At(b.Min.X, b.Min.Y)).(color.Gray).Y
	half := b.Dx() / 2
	switch g {
	case markerNoFace:
		return nil, nil
	case markerTwoFaces:
		return []FaceRegion{
			{X: b.Min.X, Y: b.Min.Y, Width: half, Height: b.Dy()},
			{X: b.Min.X + half, Y: b.Min.Y, Width: half, Height: b.Dy()},
		}, nil
	case markerBadRegion:
		return []FaceRegion{{X: b.Min.X - 10, Y: b.Min.Y, Width: b.Dx(), Height: b.Dy()}}, nil
	default:
		return []FaceRegion{RegionFromRect(b)}, nil
	}
}

// faceImage renders a deterministic pattern for identity with small
// per-photo noise.
func faceImage(identity, photo int) *image.Gray {
	rng := rand.New(rand.NewPCG(uint64(identity), uint64(photo)+1))
	fx := 0.05 + 0.07*float64(identity%5)
	fy := 0.04 + 0.06*float64((identity*3)%7)
	phase := float64(identity) * 1.3

	img := image.NewGray(image.Rect(0, 0, testImageSize, testImageSize))
	for y := range testImageSize {
		for x := range testImageSize {
			v := 0.5 + 0.4*math.Sin(fx*float64(x)+fy*float64(y)+phase)
			v += (rng.Float64() - 0.5) * 0.04
			img.SetGray(x, y, color.Gray{Y: uint8(math.Round(255 * math.Min(1, math.Max(0, v))))})
		}
	}
	img.SetGray(0, 0, color.Gray{Y: markerFace})
	return img
}

func markedImage(marker uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, testImageSize, testImageSize))
	for i := range img.Pix {
		img.Pix[i] = 100
	}
	img.SetGray(0, 0, color.Gray{Y: marker})
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

func facePhotos(t *testing.T, identity, n int) []EnrollmentImage {
	t.Helper()
	images := make([]EnrollmentImage, n)
	for i := range images {
		images[i] = EnrollmentImage{Source: imagestore.SourceUpload, Data: encodePNG(t, faceImage(identity, i))}
	}
	return images
}

func newTestImageStore(t *testing.T) *imagestore.Store {
	t.Helper()
	s, _ := newTestImageStoreAt(t)
	return s
}

// newTestImageStoreAt also returns the directory holding uploads/ and captures/.
func newTestImageStoreAt(t *testing.T) (*imagestore.Store, string) {
	t.Helper()
	root := t.TempDir()
	s, err := imagestore.New(filepath.Join(root, "uploads"), filepath.Join(root, "captures"))
	if err != nil {
		t.Fatalf("imagestore.New: %v", err)
	}
	return s, root
}

func subspaceConfig() EngineConfig {
	return EngineConfig{
		Strategy:       StrategySubspace,
		RequiredPhotos: 5,
		Verifier:       VerifierOptions{Threshold: 3.0, CrossUserCheck: true},
		Builder:        BuilderOptions{Components: 20, MinSamples: 5, Workers: 4},
	}
}

func newTestEngine(t *testing.T, cfg EngineConfig, deps EngineDeps) (*Engine, *mock.Store, string) {
	t.Helper()
	store := mock.NewStore()
	images, root := newTestImageStoreAt(t)
	deps.Store = store
	deps.Images = images
	if deps.Locator == nil {
		deps.Locator = markerLocator{}
	}
	e, err := NewEngine(cfg, deps)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e, store, root
}

func newUser(email string) database.NewUser {
	return database.NewUser{FirstName: "Test", LastName: "User", Email: email, PasswordHash: "x", Role: database.RoleUser}
}

func enroll(t *testing.T, e *Engine, email string, identity int) EnrollmentResult {
	t.Helper()
	res, err := e.Enroll(context.Background(), EnrollmentRequest{
		User:   newUser(email),
		Images: facePhotos(t, identity, e.RequiredPhotos()),
	})
	if err != nil {
		t.Fatalf("Enroll(%s): %v", email, err)
	}
	if !res.OK {
		t.Fatalf("Enroll(%s) rejected: %v", email, res.Reason)
	}
	return res
}
