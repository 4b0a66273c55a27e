package objectstore

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Bucket:    "landledger",
		Region:    "us-east-1",
		Endpoint:  "http://127.0.0.1:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Expires:   10 * time.Minute,
	}
}

func TestNewS3PresignerRequiresBucket(t *testing.T) {
	_, err := NewS3Presigner(context.Background(), Config{}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewS3PresignerConfigError(t *testing.T) {
	orig := loadAWSConfig
	t.Cleanup(func() { loadAWSConfig = orig })
	loadAWSConfig = func(context.Context, ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no profile")
	}

	_, err := NewS3Presigner(context.Background(), testConfig(), nil)
	assert.ErrorContains(t, err, "no profile")
}

func TestPresignDocumentUpload(t *testing.T) {
	p, err := NewS3Presigner(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	p.now = func() time.Time { return time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC) }

	up, err := p.PresignDocumentUpload(context.Background(), "land-1", "application/pdf")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(up.Key, "lands/land-1/2024/05/"), up.Key)
	assert.Equal(t, "PUT", up.Method)
	assert.Equal(t, time.Date(2024, 5, 2, 0, 10, 0, 0, time.UTC), up.ExpiresAt)

	u, err := url.Parse(up.URL)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", u.Host)
	assert.Equal(t, "/landledger/"+up.Key, u.Path)
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	assert.Equal(t, "600", u.Query().Get("X-Amz-Expires"))
}

func TestDocumentKeysAreUnique(t *testing.T) {
	at := time.Now()
	assert.NotEqual(t, DocumentKey("l", at), DocumentKey("l", at))
}
