//go:build integration

package cascade

import (
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/biometric"
)

// newTestLocator loads the cascade from FACE_CASCADE_PATH or a well-known
// install path and skips when OpenCV data is not installed.
func newTestLocator(t *testing.T, params biometric.LocatorParams) *Locator {
	t.Helper()
	path := os.Getenv("FACE_CASCADE_PATH")
	if _, err := resolvePath(path); err != nil {
		t.Skipf("Skipping cascade test (no cascade file): %v", err)
	}
	l, err := New(path, params)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

// schematicFace draws a light oval with dark eyes, brows and mouth on a
// mid-gray background.
func schematicFace(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{Y: 90}), image.Point{}, draw.Src)

	c := size / 2
	rx, ry := size*3/10, size*4/10
	for y := range size {
		for x := range size {
			dx, dy := float64(x-c)/float64(rx), float64(y-c)/float64(ry)
			if dx*dx+dy*dy <= 1 {
				img.Set(x, y, color.Gray{Y: 210})
			}
		}
	}
	dark := image.NewUniform(color.Gray{Y: 20})
	u := size / 20
	// brows, eyes, nose, mouth
	for _, r := range []image.Rectangle{
		image.Rect(c-5*u, c-4*u, c-2*u, c-3*u),
		image.Rect(c+2*u, c-4*u, c+5*u, c-3*u),
		image.Rect(c-5*u, c-2*u, c-2*u, c-u),
		image.Rect(c+2*u, c-2*u, c+5*u, c-u),
		image.Rect(c-u/2, c-u, c+u/2, c+2*u),
		image.Rect(c-3*u, c+4*u, c+3*u, c+5*u),
	} {
		draw.Draw(img, r, dark, image.Point{}, draw.Src)
	}
	return img
}

// testPhoto returns FACE_TEST_IMAGE when set, otherwise a schematic face.
func testPhoto(t *testing.T) (image.Image, bool) {
	t.Helper()
	path := os.Getenv("FACE_TEST_IMAGE")
	if path == "" {
		return schematicFace(240), false
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening FACE_TEST_IMAGE: %v", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decoding FACE_TEST_IMAGE: %v", err)
	}
	return img, true
}

func assertWithin(t *testing.T, regions []biometric.FaceRegion, bounds image.Rectangle) {
	t.Helper()
	for _, r := range regions {
		if !r.Within(bounds) {
			t.Errorf("region %+v outside %v", r, bounds)
		}
	}
}

func TestLocator_BlankImage(t *testing.T) {
	l := newTestLocator(t, biometric.DefaultLocatorParams())

	for name, img := range map[string]image.Image{
		"black":       image.NewRGBA(image.Rect(0, 0, 200, 200)),
		"transparent": image.NewNRGBA(image.Rect(0, 0, 200, 150)),
	} {
		t.Run(name, func(t *testing.T) {
			regions, err := l.Locate(img)
			if err != nil {
				t.Fatalf("Locate: %v", err)
			}
			if len(regions) != 0 {
				t.Errorf("blank image: got %d regions, want 0", len(regions))
			}
		})
	}
}

func TestLocator_DetectsFace(t *testing.T) {
	img, fromFile := testPhoto(t)
	l := newTestLocator(t, biometric.LocatorParams{ScaleFactor: 1.05, MinNeighbors: 3, MinSize: 30})

	regions, err := l.Locate(img)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	assertWithin(t, regions, img.Bounds())
	if fromFile && len(regions) == 0 {
		t.Error("no face found in FACE_TEST_IMAGE")
	}
}

func TestLocator_MinSizeIsApplied(t *testing.T) {
	img, _ := testPhoto(t)
	b := img.Bounds()
	l := newTestLocator(t, biometric.LocatorParams{ScaleFactor: 1.05, MinNeighbors: 3, MinSize: max(b.Dx(), b.Dy()) + 1})

	regions, err := l.Locate(img)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if len(regions) != 0 {
		t.Errorf("faces larger than the image cannot exist, got %+v", regions)
	}
}

func TestLocator_OffsetBounds(t *testing.T) {
	photo, _ := testPhoto(t)
	pb := photo.Bounds()

	// Place the photo inside a larger canvas and locate on a sub-image whose
	// bounds start away from the origin.
	offset := image.Pt(37, 21)
	canvas := image.NewRGBA(image.Rect(0, 0, pb.Dx()+offset.X+15, pb.Dy()+offset.Y+15))
	draw.Draw(canvas, pb.Sub(pb.Min).Add(offset), photo, pb.Min, draw.Src)
	sub := canvas.SubImage(image.Rectangle{Min: offset, Max: offset.Add(pb.Size())})

	l := newTestLocator(t, biometric.LocatorParams{ScaleFactor: 1.05, MinNeighbors: 3, MinSize: 30})

	direct, err := l.Locate(photo)
	if err != nil {
		t.Fatalf("Locate(photo): %v", err)
	}
	shifted, err := l.Locate(sub)
	if err != nil {
		t.Fatalf("Locate(sub): %v", err)
	}

	assertWithin(t, shifted, sub.Bounds())
	if len(direct) != len(shifted) {
		t.Fatalf("got %d regions on the sub-image, %d on the photo", len(shifted), len(direct))
	}
	delta := offset.Sub(pb.Min)
	for i := range direct {
		want := direct[i].Rect().Add(delta)
		if shifted[i].Rect() != want {
			t.Errorf("region %d = %v, want %v", i, shifted[i].Rect(), want)
		}
	}
}

func TestNew_MissingCascade(t *testing.T) {
	if _, err := New("/nonexistent/haarcascade.xml", biometric.DefaultLocatorParams()); err == nil {
		t.Error("expected error for a missing cascade file")
	}
}

func TestZeroOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	src.Set(4, 3, color.RGBA{R: 255, A: 255})

	if got := zeroOrigin(src); got != image.Image(src) {
		t.Error("zero-based image must be returned as is")
	}

	sub := src.SubImage(image.Rect(2, 1, 8, 9))
	got := zeroOrigin(sub)
	if got.Bounds() != image.Rect(0, 0, 6, 8) {
		t.Fatalf("bounds = %v", got.Bounds())
	}
	if r, _, _, _ := got.At(2, 2).RGBA(); r != 0xffff {
		t.Error("pixel (4,3) must move to (2,2)")
	}
}
