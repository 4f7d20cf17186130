// Package training talks to the remote training service. The service accepts
// a named collection of labeled images, trains a patch classifier for it, and
// exposes the resulting artifact for download once its status reaches ready.
package training

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Status is the lifecycle of a training dataset on the remote service.
type Status string

const (
	StatusPending  Status = "pending"
	StatusTraining Status = "training"
	StatusReady    Status = "ready"
	StatusFailed   Status = "failed"
)

// Dataset is one training record.
type Dataset struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Status         Status `json:"status"`
	ClassifierFile string `json:"classifier_file"`
}

// LabeledImage is one training sample: RGBA-encoded image bytes where the
// alpha channel carries the foreground mask.
type LabeledImage struct {
	Name string
	Data []byte
}

// Client is a thin REST client for the training service's dataset collection.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the service at baseURL. token may be empty
// for unauthenticated deployments.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// CreateDataset uploads a named set of labeled images and returns the new
// record, which starts in StatusPending.
func (c *Client) CreateDataset(ctx context.Context, name string, images []LabeledImage) (*Dataset, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("create dataset %q: no images", name)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("name", name); err != nil {
		return nil, fmt.Errorf("create dataset %q: %w", name, err)
	}
	if err := mw.WriteField("status", string(StatusPending)); err != nil {
		return nil, fmt.Errorf("create dataset %q: %w", name, err)
	}
	for _, img := range images {
		fw, err := mw.CreateFormFile("images", img.Name)
		if err != nil {
			return nil, fmt.Errorf("create dataset %q: %w", name, err)
		}
		if _, err := fw.Write(img.Data); err != nil {
			return nil, fmt.Errorf("create dataset %q: %w", name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("create dataset %q: %w", name, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/collections/datasets/records", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var ds Dataset
	if err := c.do(req, &ds); err != nil {
		return nil, fmt.Errorf("create dataset %q: %w", name, err)
	}
	return &ds, nil
}

// Dataset fetches the current state of one training record.
func (c *Client) Dataset(ctx context.Context, id string) (*Dataset, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/collections/datasets/records/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var ds Dataset
	if err := c.do(req, &ds); err != nil {
		return nil, fmt.Errorf("fetch dataset %s: %w", id, err)
	}
	return &ds, nil
}

// AwaitReady polls the record until its status leaves pending/training or
// the context is done. It returns the terminal record; a failed training run
// is reported as an error.
func (c *Client) AwaitReady(ctx context.Context, id string, interval time.Duration) (*Dataset, error) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ds, err := c.Dataset(ctx, id)
		if err != nil {
			return nil, err
		}
		switch ds.Status {
		case StatusReady:
			return ds, nil
		case StatusFailed:
			return ds, fmt.Errorf("training failed for dataset %s", id)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// DownloadClassifier fetches the trained artifact for a ready dataset into
// destPath. The file is written to a temporary name first and renamed into
// place so a partial download never masquerades as a usable model.
func (c *Client) DownloadClassifier(ctx context.Context, ds *Dataset, destPath string) error {
	if ds.Status != StatusReady {
		return fmt.Errorf("dataset %s is %s, not ready", ds.ID, ds.Status)
	}
	if ds.ClassifierFile == "" {
		return fmt.Errorf("dataset %s has no classifier file", ds.ID)
	}

	path := fmt.Sprintf("/api/files/datasets/%s/%s",
		url.PathEscape(ds.ID), url.PathEscape(ds.ClassifierFile))
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("download classifier for %s: %w", ds.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download classifier for %s: unexpected status %s", ds.ID, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destPath), ".classifier-*.onnx")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("download classifier for %s: %w", ds.ID, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), destPath)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, msg)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
