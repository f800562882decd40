package storage

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		in     string
		host   string
		secure bool
		err    bool
	}{
		{in: "localhost:9000", host: "localhost:9000", secure: true},
		{in: "http://localhost:9000", host: "localhost:9000", secure: false},
		{in: "https://s3.example.com", host: "s3.example.com", secure: true},
		{in: "ftp://s3.example.com", err: true},
		{in: "http://", err: true},
	}
	for _, tc := range tests {
		host, secure, err := splitEndpoint(tc.in)
		if tc.err {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.host, host, tc.in)
		assert.Equal(t, tc.secure, secure, tc.in)
	}
}

func TestNewMinioClient_Validation(t *testing.T) {
	_, err := NewMinioClient(ClientOptions{Endpoint: "http://localhost:9000"})
	assert.Error(t, err)
	_, err = NewMinioClient(ClientOptions{Region: "us-east-1"})
	assert.Error(t, err)
}

func TestMinioSession_SignIsLocal(t *testing.T) {
	client, err := NewMinioClient(ClientOptions{
		Region:          "us-east-1",
		Endpoint:        "http://127.0.0.1:1",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
	})
	require.NoError(t, err)

	_, err = NewMinioSession(client, "", 0)
	assert.ErrorIs(t, err, ErrBucketRequired)

	s, err := NewMinioSession(client, "photos", 0)
	require.NoError(t, err)
	assert.Equal(t, "photos", s.Bucket())

	raw, err := s.Sign(context.Background(), "1000-cat.png", time.Hour)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:1", u.Host)
	assert.Equal(t, "/photos/1000-cat.png", u.Path)
	assert.Equal(t, "3600", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}
