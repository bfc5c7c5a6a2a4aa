// Package kaggle pushes exported dataset files to Kaggle Datasets. The
// client wraps the Datasets HTTP API and classifies every remote failure
// once, at this boundary; the uploader drives the create-version /
// create-dataset state machine on top of it.
package kaggle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/datasetkit/commodity-data/internal/apperror"
)

const defaultBaseURL = "https://www.kaggle.com/api/v1"

// Client is a thin Kaggle Datasets API client authenticated with the
// account's API username/key pair.
type Client struct {
	client *resty.Client
}

func NewClient(username, key string, opts ...ClientOption) *Client {
	rc := resty.New()
	rc.SetBaseURL(defaultBaseURL)
	rc.SetBasicAuth(username, key)
	rc.SetTimeout(120 * time.Second)

	c := &Client{client: rc}
	for _, o := range opts {
		o(c)
	}
	return c
}

type ClientOption func(*Client)

func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.client.SetBaseURL(u) }
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.client.SetTimeout(d) }
}

type uploadFileResponse struct {
	Token     string `json:"token"`
	CreateURL string `json:"createUrl"`
	Error     string `json:"error"`
}

type datasetResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// UploadFile stages one local file and returns the token to reference it in
// a subsequent create call. Kaggle hands back a signed URL that receives the
// raw bytes.
func (c *Client) UploadFile(ctx context.Context, path string) (string, error) {
	op := fmt.Sprintf("kaggle: upload file %s", filepath.Base(path))

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat upload file: %w", err)
	}

	var out uploadFileResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"fileName": filepath.Base(path)}).
		SetResult(&out).
		Post(fmt.Sprintf("/datasets/upload/file/%d/%d", info.Size(), info.ModTime().UTC().Unix()))
	if cerr := c.classify(op, res, err, out.Error); cerr != nil {
		return "", cerr
	}
	if out.Token == "" {
		return "", apperror.New(apperror.Other, op, "no upload token in response")
	}

	if out.CreateURL != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read upload file: %w", err)
		}
		putRes, err := c.client.R().
			SetContext(ctx).
			SetBody(data).
			Put(out.CreateURL)
		if cerr := c.classify(op, putRes, err, ""); cerr != nil {
			return "", cerr
		}
	}

	return out.Token, nil
}

// CreateVersion pushes a new version of an existing dataset identified by
// owner/slug. Old versions are pruned remotely.
func (c *Client) CreateVersion(ctx context.Context, owner, slug, notes string, tokens []string) error {
	op := fmt.Sprintf("kaggle: create version %s/%s", owner, slug)

	var out datasetResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"versionNotes":      notes,
			"deleteOldVersions": true,
			"files":             fileTokens(tokens),
		}).
		SetResult(&out).
		Post(fmt.Sprintf("/datasets/create/version/%s/%s", owner, slug))
	return c.classify(op, res, err, out.Error)
}

// DatasetMeta describes a dataset to be created from scratch.
type DatasetMeta struct {
	Owner   string
	Slug    string
	Title   string
	License string
	Private bool
}

// CreateDataset creates a brand-new dataset with the given staged files.
func (c *Client) CreateDataset(ctx context.Context, meta DatasetMeta, tokens []string) error {
	op := fmt.Sprintf("kaggle: create dataset %s/%s", meta.Owner, meta.Slug)

	license := meta.License
	if license == "" {
		license = "CC0-1.0"
	}

	var out datasetResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"title":       meta.Title,
			"slug":        meta.Slug,
			"ownerSlug":   meta.Owner,
			"licenseName": license,
			"isPrivate":   meta.Private,
			"files":       fileTokens(tokens),
		}).
		SetResult(&out).
		Post("/datasets/create/new")
	return c.classify(op, res, err, out.Error)
}

// classify maps the outcome of one HTTP exchange to the closed error set.
// Network-level failures are Transient; HTTP statuses are classified by code;
// a 200 carrying an application-level error field is Other.
func (c *Client) classify(op string, res *resty.Response, err error, bodyError string) error {
	if err != nil {
		return apperror.New(apperror.Transient, op, err.Error())
	}
	if res != nil && res.IsError() {
		return apperror.FromStatus(op, res.StatusCode(), strings.TrimSpace(string(res.Body())))
	}
	if bodyError != "" {
		return apperror.New(apperror.Other, op, bodyError)
	}
	return nil
}

func fileTokens(tokens []string) []map[string]string {
	files := make([]map[string]string, len(tokens))
	for i, tok := range tokens {
		files[i] = map[string]string{"token": tok}
	}
	return files
}
