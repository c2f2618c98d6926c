// Package s3 实现基于 MinIO / S3 兼容存储的对象存储网关.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yeisme/flowvault/pkg/configs"
	"github.com/yeisme/flowvault/pkg/internal/bundle"
	nlog "github.com/yeisme/flowvault/pkg/log"
)

// MaxPresignExpiry S3 预签名 URL 的最长有效期.
const MaxPresignExpiry = 7 * 24 * time.Hour

// Client 包装 MinIO 客户端，实现 bundle.Gateway.
type Client struct {
	*minio.Client

	bucket string
	http   *http.Client
}

var _ bundle.Gateway = (*Client)(nil)

// New 初始化 MinIO 客户端，开启 AutoCreate 时若 bucket 不存在则创建.
func New(ctx context.Context, cfg *configs.StorageConfig) (*Client, error) {
	s3cfg := cfg.S3
	endpoint := s3cfg.Endpoint
	// 允许用户传完整 schema endpoint（http:// 或 https://）
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			s3cfg.UseSSL = true
		}
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(s3cfg.AccessKeyID, s3cfg.SecretAccessKey, ""),
		Secure: s3cfg.UseSSL,
		Region: s3cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	cli.SetAppInfo("flowvault", configs.AppVersion)

	if s3cfg.AutoCreate {
		if err := ensureBucket(ctx, cli, cfg.Bucket, s3cfg.Region); err != nil {
			return nil, err
		}
	}

	nlog.Logger().Info().Str("endpoint", s3cfg.Endpoint).Str("bucket", cfg.Bucket).Msg("s3 connected")

	return &Client{
		Client: cli,
		bucket: cfg.Bucket,
		http:   &http.Client{Timeout: cfg.GetTimeoutDuration()},
	}, nil
}

func ensureBucket(ctx context.Context, cli *minio.Client, bucket, region string) error {
	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}

	if exists {
		return nil
	}

	if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}

	nlog.Logger().Info().Str("bucket", bucket).Msg("bucket created")

	return nil
}

// Upload 上传对象.
func (c *Client) Upload(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	_, err := c.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", bundle.ErrUploadFailed, key, err)
	}

	return key, nil
}

// Sign 生成预签名 GET URL，有效期不超过 7 天.
func (c *Client) Sign(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if expiry > MaxPresignExpiry {
		expiry = MaxPresignExpiry
	}

	u, err := c.PresignedGetObject(ctx, c.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", bundle.ErrSigningFailed, key, err)
	}

	return u.String(), nil
}

// Fetch 通过签名 URL 下载对象.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bundle.ErrFetchFailed, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bundle.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", bundle.ErrFetchFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bundle.ErrFetchFailed, err)
	}

	return data, nil
}

// Delete 删除对象，对象不存在视为成功.
func (c *Client) Delete(ctx context.Context, key string) error {
	err := c.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{})
	if err == nil {
		return nil
	}

	if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return nil
	}

	return fmt.Errorf("%w: %s: %v", bundle.ErrDeleteFailed, key, err)
}

// HealthCheck 通过检查 bucket 验证连接.
func (c *Client) HealthCheck(ctx context.Context) error {
	ok, err := c.BucketExists(ctx, c.bucket)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("bucket %s not found", c.bucket)
	}

	return nil
}

// Close 关闭 S3 客户端连接（无实际操作，接口兼容）.
func (c *Client) Close() error {
	return nil
}
