package predict

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
)

// Submitter sends one image to a prediction service.
type Submitter interface {
	Predict(ctx context.Context, img Image, patient Patient) (Result, error)
}

// Image is an in-memory copy of the file the user picked.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Patient carries the optional metadata the backend records alongside a prediction.
type Patient struct {
	ID     string
	Age    int
	Gender string
}

// Result is the prediction payload returned by the service. Its contents are
// passed through untouched.
type Result struct {
	Diagnosis  string  `json:"diagnosis"`
	Confidence float64 `json:"confidence"`
	Report     string  `json:"report"`
}

var ErrNoImage = errors.New("predict: no image selected")

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("predict: service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("predict: service returned status %d: %s", e.StatusCode, e.Body)
}

// LoadImage reads path into an Image. The content is not inspected.
func LoadImage(path string) (Image, error) {
	if path == "" {
		return Image{}, ErrNoImage
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, fmt.Errorf("read image: %w", err)
	}
	return Image{
		Filename:    filepath.Base(path),
		ContentType: contentType(path),
		Data:        data,
	}, nil
}

func contentType(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// FormatConfidence renders a confidence score with two decimals and a percent sign.
func FormatConfidence(c float64) string {
	return strconv.FormatFloat(c, 'f', 2, 64) + "%"
}
