package lightbucket

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload_SendsAuthenticatedJSON(t *testing.T) {
	var gotPath, gotAuth, gotType string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(server.URL+"/", "pweber", "secret")
	err := client.Upload(context.Background(), []byte(`{"target":{}}`))
	require.NoError(t, err)

	expectedAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("pweber:secret"))
	assert.Equal(t, CaptureCompletePath, gotPath)
	assert.Equal(t, expectedAuth, gotAuth)
	assert.Equal(t, "application/json", gotType)
	assert.JSONEq(t, `{"target":{}}`, string(gotBody))
}

func TestUpload_NonOKIsRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("server error"))
	}))
	defer server.Close()

	err := New(server.URL, "u", "k").Upload(context.Background(), []byte(`{}`))
	require.Error(t, err)

	var rejected *UploadRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, 500, rejected.StatusCode)
	assert.Equal(t, "server error", rejected.Body)
	assert.ErrorIs(t, err, ErrUploadRejected)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "server error")
}

func TestUpload_CreatedIsStillRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	err := New(server.URL, "u", "k").Upload(context.Background(), []byte(`{}`))
	assert.ErrorIs(t, err, ErrUploadRejected)
}

func TestUpload_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := New(url, "u", "k").Upload(context.Background(), []byte(`{}`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUploadRejected)
}
