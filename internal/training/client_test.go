package training

import (
	"context"
	"encoding/json"
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

func TestCreateDataset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/collections/datasets/records", r.URL.Path)
		require.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "mug", r.FormValue("name"))
		assert.Equal(t, "pending", r.FormValue("status"))
		require.Len(t, r.MultipartForm.File["images"], 2)

		json.NewEncoder(w).Encode(Dataset{ID: "rec1", Name: "mug", Status: StatusPending})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sekrit")
	ds, err := c.CreateDataset(context.Background(), "mug", []LabeledImage{
		{Name: "a.png", Data: []byte("aaa")},
		{Name: "b.png", Data: []byte("bbb")},
	})
	require.NoError(t, err)
	assert.Equal(t, "rec1", ds.ID)
	assert.Equal(t, StatusPending, ds.Status)
}

func TestCreateDatasetRejectsEmpty(t *testing.T) {
	c := NewClient("http://unused", "")
	_, err := c.CreateDataset(context.Background(), "mug", nil)
	assert.Error(t, err)
}

func TestAwaitReadyPollsToCompletion(t *testing.T) {
	var polls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/collections/datasets/records/rec1", r.URL.Path)
		ds := Dataset{ID: "rec1", Status: StatusTraining}
		if polls.Add(1) >= 3 {
			ds.Status = StatusReady
			ds.ClassifierFile = "classifier.onnx"
		}
		json.NewEncoder(w).Encode(ds)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	ds, err := c.AwaitReady(context.Background(), "rec1", 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, ds.Status)
	assert.GreaterOrEqual(t, polls.Load(), int64(3))
}

func TestAwaitReadyFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Dataset{ID: "rec1", Status: StatusFailed})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	ds, err := c.AwaitReady(context.Background(), "rec1", time.Millisecond)
	assert.Error(t, err)
	require.NotNil(t, ds)
	assert.Equal(t, StatusFailed, ds.Status)
}

func TestAwaitReadyContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Dataset{ID: "rec1", Status: StatusPending})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	c := NewClient(srv.URL, "")
	_, err := c.AwaitReady(ctx, "rec1", 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDownloadClassifier(t *testing.T) {
	artifact := []byte("onnx-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/files/datasets/rec1/classifier.onnx", r.URL.Path)
		w.Write(artifact)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "classifier.onnx")
	c := NewClient(srv.URL, "")
	ds := &Dataset{ID: "rec1", Status: StatusReady, ClassifierFile: "classifier.onnx"}
	require.NoError(t, c.DownloadClassifier(context.Background(), ds, dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, artifact, got)
}

func TestDownloadClassifierNotReady(t *testing.T) {
	c := NewClient("http://unused", "")
	err := c.DownloadClassifier(context.Background(), &Dataset{ID: "rec1", Status: StatusTraining}, "x")
	assert.Error(t, err)
}

func TestDownloadClassifierHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "classifier.onnx")
	c := NewClient(srv.URL, "")
	ds := &Dataset{ID: "rec1", Status: StatusReady, ClassifierFile: "classifier.onnx"}
	err := c.DownloadClassifier(context.Background(), ds, dest)
	assert.Error(t, err)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "partial download must not appear at dest")
}
