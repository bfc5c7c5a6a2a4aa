package kaggle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datasetkit/commodity-data/internal/apperror"
)

func TestUploadFileStagesAndPuts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte("Date,Price\n"), 0o644))

	var putBody []byte
	mux := http.NewServeMux()
	var ts *httptest.Server

	mux.HandleFunc("/datasets/upload/file/", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			FileName string `json:"fileName"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "prices.csv", body.FileName)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"token":     "tok-123",
			"createUrl": ts.URL + "/blob/tok-123",
		})
	})
	mux.HandleFunc("/blob/tok-123", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		putBody, _ = os.ReadFile(path)
		w.WriteHeader(http.StatusOK)
	})

	ts = httptest.NewServer(mux)
	defer ts.Close()

	c := NewClient("user", "key", WithBaseURL(ts.URL))
	token, err := c.UploadFile(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
	assert.NotEmpty(t, putBody)
}

func TestCreateVersionClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		kind   apperror.Kind
	}{
		{"not found", http.StatusNotFound, apperror.NotFound},
		{"forbidden", http.StatusForbidden, apperror.Forbidden},
		{"unauthorized", http.StatusUnauthorized, apperror.Forbidden},
		{"rate limited", http.StatusTooManyRequests, apperror.Transient},
		{"server error", http.StatusServiceUnavailable, apperror.Transient},
		{"bad request", http.StatusBadRequest, apperror.Other},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/datasets/create/version/acme/crude-oil-brent", r.URL.Path)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte("remote says no"))
			}))
			defer ts.Close()

			c := NewClient("user", "key", WithBaseURL(ts.URL))
			err := c.CreateVersion(context.Background(), "acme", "crude-oil-brent", "notes", []string{"tok"})

			require.Error(t, err)
			assert.Equal(t, tc.kind, apperror.KindOf(err))
		})
	}
}

func TestCreateVersionSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			VersionNotes      string              `json:"versionNotes"`
			DeleteOldVersions bool                `json:"deleteOldVersions"`
			Files             []map[string]string `json:"files"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.DeleteOldVersions)
		assert.Equal(t, []map[string]string{{"token": "tok"}}, body.Files)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer ts.Close()

	c := NewClient("user", "key", WithBaseURL(ts.URL))
	require.NoError(t, c.CreateVersion(context.Background(), "acme", "slug", "notes", []string{"tok"}))
}

func TestCreateDatasetApplicationError(t *testing.T) {
	// Kaggle reports some failures as HTTP 200 with an error field.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/datasets/create/new", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "slug already in use"})
	}))
	defer ts.Close()

	c := NewClient("user", "key", WithBaseURL(ts.URL))
	err := c.CreateDataset(context.Background(), DatasetMeta{Owner: "acme", Slug: "s", Title: "T"}, []string{"tok"})

	require.Error(t, err)
	assert.Equal(t, apperror.Other, apperror.KindOf(err))
}

func TestNetworkFailureIsTransient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // refuse connections

	c := NewClient("user", "key", WithBaseURL(ts.URL))
	err := c.CreateVersion(context.Background(), "acme", "slug", "notes", []string{"tok"})

	require.Error(t, err)
	assert.Equal(t, apperror.Transient, apperror.KindOf(err))
}
