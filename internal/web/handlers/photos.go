package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/biometric"
	"github.com/kozaktomas/face-attendance/internal/imagestore"
)

const (
	maxMultipartMemory = 32 << 20
	maxFormPhotos      = 32
)

var (
	errPhotoMissing     = errors.New("photo is required")
	errPhotoTooLarge    = fmt.Errorf("photo exceeds %d bytes", maxPhotoBytes)
	errPhotoUnsupported = errors.New("only png, jpg, jpeg and gif uploads are accepted")
)

// readUpload reads one multipart file, enforcing the extension allow-list and size cap.
func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if !imagestore.AllowedUpload(fh.Filename) {
		return nil, errPhotoUnsupported
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxPhotoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if len(data) > maxPhotoBytes {
		return nil, errPhotoTooLarge
	}
	return data, nil
}

// readCapture decodes a base64 data URL.
func readCapture(s string) ([]byte, error) {
	data, err := imagestore.DecodeDataURL(s)
	if err != nil {
		return nil, err
	}
	if len(data) > maxPhotoBytes {
		return nil, errPhotoTooLarge
	}
	return data, nil
}

// enrollmentImages collects the uploaded `photos` files followed by the
// `webcam_photos_<i>` captures of a parsed multipart form.
func enrollmentImages(form *multipart.Form) ([]biometric.EnrollmentImage, error) {
	var images []biometric.EnrollmentImage
	for _, fh := range form.File["photos"] {
		data, err := readUpload(fh)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fh.Filename, err)
		}
		images = append(images, biometric.EnrollmentImage{Source: imagestore.SourceUpload, Data: data})
	}
	for i := range maxFormPhotos {
		key := "webcam_photos_" + strconv.Itoa(i)
		values := form.Value[key]
		if len(values) == 0 || values[0] == "" {
			break
		}
		data, err := readCapture(values[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		images = append(images, biometric.EnrollmentImage{Source: imagestore.SourceCapture, Data: data})
	}
	return images, nil
}

// livePhotoRequest is the JSON form of a request carrying one live capture.
type livePhotoRequest struct {
	Photo      string `json:"photo"`
	ScheduleID int64  `json:"schedule_id,omitempty"`
}

// readLivePhoto accepts either a multipart `photo` file (or data URL field)
// or a JSON body with a data URL.
func readLivePhoto(r *http.Request) ([]byte, livePhotoRequest, error) {
	var req livePhotoRequest

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, req, fmt.Errorf("%s: %w", errInvalidRequestBody, err)
		}
		if id := r.FormValue("schedule_id"); id != "" {
			n, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				return nil, req, errors.New("schedule_id must be a number")
			}
			req.ScheduleID = n
		}
		if files := r.MultipartForm.File["photo"]; len(files) > 0 {
			data, err := readUpload(files[0])
			return data, req, err
		}
		req.Photo = r.FormValue("photo")
	} else {
		if err := json.NewDecoder(io.LimitReader(r.Body, 2*maxPhotoBytes)).Decode(&req); err != nil {
			return nil, req, errors.New(errInvalidRequestBody)
		}
	}

	if req.Photo == "" {
		return nil, req, errPhotoMissing
	}
	data, err := readCapture(req.Photo)
	return data, req, err
}
