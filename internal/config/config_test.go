package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644), "无法写入临时配置文件")
	return path
}

// TestLoadConfigMergesDefaults 验证 YAML 中缺省的字段保留默认值
func TestLoadConfigMergesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":9090"
scoring:
  weighted_score_mode: mean
delibs:
  max_vote: 10
`)
	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", config.Server.Address)
	assert.Equal(t, "mean", config.Scoring.WeightedScoreMode)
	assert.Equal(t, 0.001, config.Scoring.WeightTolerance, "未配置的字段应保留默认值")
	assert.Equal(t, 1, config.Delibs.MinVote)
	assert.Equal(t, 10, config.Delibs.MaxVote)
	assert.Equal(t, "recruit_pipeline", config.MySQL.Database)
	assert.Equal(t, "pipeline.events.exchange", config.RabbitMQ.PipelineExchange)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

// TestLoadConfigFromFileAndEnv 验证 .env 文件和环境变量覆盖敏感配置
func TestLoadConfigFromFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
mysql:
  password: "from-yaml"
auth:
  jwt_secret: "yaml-secret"
`)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("MINIO_SECRET_KEY=from-dotenv\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("MINIO_SECRET_KEY") })
	t.Setenv("MYSQL_PASSWORD", "from-env")
	t.Setenv("JWT_SECRET", "env-secret")

	config, err := LoadConfigFromFileAndEnv(path, envFile)
	require.NoError(t, err)
	assert.Equal(t, "from-env", config.MySQL.Password)
	assert.Equal(t, "env-secret", config.Auth.JWTSecret)
	assert.Equal(t, "from-dotenv", config.MinIO.SecretAccessKey)
}

func TestValidate(t *testing.T) {
	config := createDefaultConfig()
	config.Auth.JWTSecret = "s3cret"
	require.NoError(t, config.Validate())

	config.Scoring.WeightedScoreMode = "median"
	config.Delibs.MinVote = 6
	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weighted_score_mode")
	assert.Contains(t, err.Error(), "min_vote")

	config = createDefaultConfig()
	assert.ErrorContains(t, config.Validate(), "jwt_secret")
}

func TestCreateSampleConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yaml")
	require.NoError(t, CreateSampleConfig(path))
	assert.Error(t, CreateSampleConfig(path), "已存在的文件不应被覆盖")

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, createDefaultConfig(), config)
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 3*time.Second, GetDuration("3s", time.Second))
	assert.Equal(t, time.Second, GetDuration("", time.Second))
	assert.Equal(t, time.Second, GetDuration("soon", time.Second))
}
