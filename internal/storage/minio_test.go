package storage

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruit-pipeline/internal/config"
)

// 指定 Region 后预签名不需要访问服务端
func newOfflineMinIO(t *testing.T) *MinIO {
	t.Helper()
	client, err := minio.New("minio.internal:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("ak", "sk", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return &MinIO{
		client:        client,
		cfg:           &config.MinIOConfig{},
		bucket:        "headshots",
		presignExpiry: 30 * time.Minute,
		logger:        zerolog.Nop(),
	}
}

func TestResolveHeadshot_PassThrough(t *testing.T) {
	m := newOfflineMinIO(t)
	for _, raw := range []string{"", "https://cdn.example.com/a.png", "HTTP://legacy.example.com/b.jpg"} {
		got, err := m.ResolveHeadshot(context.Background(), raw)
		require.NoError(t, err)
		assert.Equal(t, raw, got)
	}
}

func TestResolveHeadshot_Presigns(t *testing.T) {
	m := newOfflineMinIO(t)
	for _, raw := range []string{"applicants/alice.png", "headshots/applicants/alice.png", "/headshots/applicants/alice.png"} {
		got, err := m.ResolveHeadshot(context.Background(), raw)
		require.NoError(t, err, raw)

		u, err := url.Parse(got)
		require.NoError(t, err)
		assert.Equal(t, "minio.internal:9000", u.Host)
		assert.Equal(t, "/headshots/applicants/alice.png", u.Path, raw)
		assert.Equal(t, "1800", u.Query().Get("X-Amz-Expires"))
	}
}
