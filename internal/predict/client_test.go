package predict

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientPredictSendsImageField(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		if !assert.NoError(t, r.ParseMultipartForm(10<<20)) {
			return
		}

		file, header, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)

		assert.Equal(t, "chest.png", header.Filename)
		assert.Equal(t, "image/png", header.Header.Get("Content-Type"))
		assert.Equal(t, []byte("fake-png-bytes"), data)
		assert.Equal(t, "P-001", r.FormValue("patient_id"))
		assert.Equal(t, "54", r.FormValue("age"))
		assert.Equal(t, "Female", r.FormValue("gender"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"diagnosis":"Pneumonia","confidence":87.5,"report":"FINDINGS:\nPatchy opacities."}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	res, err := c.Predict(context.Background(),
		Image{Filename: "chest.png", ContentType: "image/png", Data: []byte("fake-png-bytes")},
		Patient{ID: "P-001", Age: 54, Gender: "Female"},
	)
	require.NoError(t, err)
	require.Equal(t, int32(1), calls.Load())
	require.Equal(t, Result{Diagnosis: "Pneumonia", Confidence: 87.5, Report: "FINDINGS:\nPatchy opacities."}, res)
}

func TestClientPredictOmitsEmptyPatientFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		_, ok := r.MultipartForm.Value["patient_id"]
		assert.False(t, ok)
		_, ok = r.MultipartForm.Value["age"]
		assert.False(t, ok)
		_, _ = io.WriteString(w, `{"diagnosis":"NORMAL","confidence":91.2,"report":"clear"}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Predict(context.Background(), Image{Filename: "a.jpg", Data: []byte{1}}, Patient{})
	require.NoError(t, err)
}

func TestClientPredictCustomField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, err := r.FormFile("xray")
		assert.NoError(t, err)
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, WithFieldName("xray")).Predict(context.Background(), Image{Filename: "a.jpg", Data: []byte{1}}, Patient{})
	require.NoError(t, err)
}

func TestClientPredictPassesResultThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"diagnosis":"","confidence":412.75,"report":""}`)
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL).Predict(context.Background(), Image{Filename: "a.jpg", Data: []byte{1}}, Patient{})
	require.NoError(t, err)
	require.Equal(t, 412.75, res.Confidence)
	require.Equal(t, "412.75%", FormatConfidence(res.Confidence))
}

func TestClientPredictStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Predict(context.Background(), Image{Filename: "a.jpg", Data: []byte{1}}, Patient{})
	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	require.Equal(t, "model not loaded", se.Body)
	require.Contains(t, err.Error(), "503")
}

func TestClientPredictDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>oops</html>`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Predict(context.Background(), Image{Filename: "a.jpg", Data: []byte{1}}, Patient{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode prediction")
}

func TestClientPredictNoImage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Predict(context.Background(), Image{}, Patient{})
	require.ErrorIs(t, err, ErrNoImage)
	require.Zero(t, calls.Load())
}

func TestClientPredictHonoursCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := NewClient(srv.URL).Predict(ctx, Image{Filename: "a.jpg", Data: []byte{1}}, Patient{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestClientPredictTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(srv.URL, WithTimeout(20*time.Millisecond)).Predict(context.Background(), Image{Filename: "a.jpg", Data: []byte{1}}, Patient{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.JPG")
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0o600))

	img, err := LoadImage(path)
	require.NoError(t, err)
	require.Equal(t, "scan.JPG", img.Filename)
	require.Equal(t, "image/jpeg", img.ContentType)
	require.Equal(t, []byte("jpeg"), img.Data)

	_, err = LoadImage("")
	require.ErrorIs(t, err, ErrNoImage)

	_, err = LoadImage(filepath.Join(dir, "missing.png"))
	require.Error(t, err)
}

func TestFormatConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{87.5, "87.50%"},
		{0, "0.00%"},
		{99.999, "100.00%"},
		{12.344, "12.34%"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FormatConfidence(tt.in))
	}
}
