package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"recruit-pipeline/internal/config"
	"recruit-pipeline/internal/pipeline"
	"recruit-pipeline/internal/tracing"
)

var minioTracer = otel.Tracer("recruit-pipeline/storage/minio")

// MinIO 存放申请人头像，并为评议列表生成预签名地址
type MinIO struct {
	client        *minio.Client
	cfg           *config.MinIOConfig
	bucket        string
	presignExpiry time.Duration
	logger        zerolog.Logger
}

var _ pipeline.HeadshotResolver = (*MinIO)(nil)

// NewMinIO 创建MinIO客户端并确保头像存储桶存在
func NewMinIO(cfg *config.MinIOConfig, logger zerolog.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	logger = logger.With().Str("component", "minio").Logger()

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	bucket := cfg.HeadshotsBucket
	if bucket == "" {
		bucket = "headshots"
	}
	m := &MinIO{
		client:        client,
		cfg:           cfg,
		bucket:        bucket,
		presignExpiry: config.GetDuration(cfg.PresignExpiry, time.Hour),
		logger:        logger,
	}

	if err := m.ensureBucketExists(context.Background(), bucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保头像存储桶 %s 存在失败: %w", bucket, err)
	}
	m.logger.Info().Str("endpoint", cfg.Endpoint).Str("bucket", bucket).Msg("MinIO client initialized")
	return m, nil
}

func (m *MinIO) ensureBucketExists(ctx context.Context, bucketName, location string) error {
	exists, err := m.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location}); err != nil {
		return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
	}
	m.logger.Info().Str("bucket", bucketName).Msg("bucket created")
	return nil
}

// objectKey 去掉可选的 "<bucket>/" 前缀
func (m *MinIO) objectKey(raw string) string {
	return strings.TrimPrefix(strings.TrimPrefix(raw, "/"), m.bucket+"/")
}

// ResolveHeadshot 完整 URL 原样返回，对象键转换为预签名地址
func (m *MinIO) ResolveHeadshot(ctx context.Context, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || isAbsoluteURL(raw) {
		return raw, nil
	}
	key := m.objectKey(raw)
	ctx, span := minioTracer.Start(ctx, "minio.PresignHeadshot")
	defer span.End()
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.presignExpiry, nil)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeMinIO,
			attribute.String("minio.bucket", m.bucket),
			attribute.String("minio.headshot_object", tracing.SafeAttributeValue("headshot_object", key, tracing.DefaultMaxLength)))
		return "", fmt.Errorf("生成头像预签名URL失败 %s: %w", key, err)
	}
	if m.cfg.EnableTestLogging {
		m.logger.Debug().Str("key", key).Msg("headshot presigned")
	}
	return u.String(), nil
}

func isAbsoluteURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
