package provider_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/seoflow/pkg/provider"
)

func signedHeader(secret string, ts time.Time, body []byte) http.Header {
	h := make(http.Header)
	h.Set(provider.HeaderTimestamp, strconv.FormatInt(ts.Unix(), 10))
	h.Set(provider.HeaderSignature, provider.Sign(secret, ts.Unix(), body))
	return h
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	body := []byte(`{"jobId":"job_1","type":"crawl"}`)
	now := time.Now()

	tests := []struct {
		name    string
		secret  string
		header  http.Header
		body    []byte
		maxAge  time.Duration
		wantErr bool
	}{
		{"valid", "s3cret", signedHeader("s3cret", now, body), body, 5 * time.Minute, false},
		{"no age check", "s3cret", signedHeader("s3cret", now.Add(-time.Hour), body), body, 0, false},
		{"wrong secret", "other", signedHeader("s3cret", now, body), body, time.Minute, true},
		{"tampered body", "s3cret", signedHeader("s3cret", now, body), []byte(`{"jobId":"job_2"}`), time.Minute, true},
		{"too old", "s3cret", signedHeader("s3cret", now.Add(-10*time.Minute), body), body, 5 * time.Minute, true},
		{"from the future", "s3cret", signedHeader("s3cret", now.Add(5*time.Minute), body), body, 5 * time.Minute, true},
		{"missing headers", "s3cret", http.Header{}, body, time.Minute, true},
		{"empty secret", "", signedHeader("", now, body), body, time.Minute, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := provider.VerifySignature(tt.secret, tt.header, tt.body, tt.maxAge)
			if tt.wantErr {
				assert.ErrorIs(t, err, provider.ErrInvalidSignature)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestClient_SignsRequests(t *testing.T) {
	t.Parallel()

	verified := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		verified <- provider.VerifySignature("s3cret", r.Header, body, time.Minute)
	}))
	t.Cleanup(srv.Close)

	c := provider.New("cms", provider.WithBaseURL(srv.URL), provider.WithSigningSecret("s3cret"))
	_, err := c.Do(context.Background(), provider.Request{Method: http.MethodPost, Path: "/post", Body: map[string]string{"a": "b"}})
	require.NoError(t, err)
	assert.NoError(t, <-verified)
}
