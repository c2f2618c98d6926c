// Package supabase 实现基于 Supabase Storage REST 接口的对象存储网关.
//
//	POST   /storage/v1/object/<bucket>/<key>        上传
//	POST   /storage/v1/object/sign/<bucket>/<key>   签名，body {"expiresIn": N}
//	DELETE /storage/v1/object/<bucket>/<key>        删除，404 视为成功
package supabase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/sony/gobreaker"

	"github.com/yeisme/flowvault/pkg/configs"
	"github.com/yeisme/flowvault/pkg/internal/bundle"
	nlog "github.com/yeisme/flowvault/pkg/log"
)

const (
	apiPrefix = "/storage/v1"
	// maxErrorBody 错误响应体最多读取的字节数.
	maxErrorBody = 4 << 10
)

// Client Supabase Storage 网关.
type Client struct {
	baseURL string
	key     string
	bucket  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// Option 配置 Client.
type Option func(*Client)

// WithHTTPClient 替换 HTTP 客户端.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithBreaker 为上传、签名与删除调用加上熔断.
func WithBreaker(cfg configs.CircuitBreakerConfig) Option {
	return func(c *Client) {
		if !cfg.Enabled {
			return
		}

		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "supabase-storage",
			MaxRequests: cfg.MaxRequestsInHalf,
			Interval:    cfg.Interval(),
			Timeout:     cfg.Timeout(),
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return cfg.ShouldTrip(counts.Requests, counts.TotalFailures)
			},
		})
	}
}

// New 创建 Supabase 网关.
func New(cfg *configs.StorageConfig, opts ...Option) (*Client, error) {
	base := cfg.Supabase.GetBaseURL()
	if base == "" {
		return nil, errors.New("supabase url is required")
	}

	if cfg.Supabase.ServiceRoleKey == "" {
		return nil, errors.New("supabase service role key is required")
	}

	c := &Client{
		baseURL: base,
		key:     cfg.Supabase.ServiceRoleKey,
		bucket:  cfg.Bucket,
		http:    &http.Client{Timeout: cfg.GetTimeoutDuration()},
	}

	for _, opt := range opts {
		opt(c)
	}

	nlog.Logger().Info().Str("url", base).Str("bucket", c.bucket).Msg("supabase storage gateway ready")

	return c, nil
}

var _ bundle.Gateway = (*Client)(nil)

// Upload 上传对象，返回存储键.
func (c *Client) Upload(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	err := c.execute(func() error {
		req, err := c.newRequest(ctx, http.MethodPost, c.objectURL("/object/", key), bytes.NewReader(data))
		if err != nil {
			return err
		}

		req.Header.Set("Content-Type", mimeType)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer drain(resp)

		if resp.StatusCode/100 != 2 {
			return statusError(resp)
		}

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", bundle.ErrUploadFailed, key, err)
	}

	return key, nil
}

type signRequest struct {
	ExpiresIn int `json:"expiresIn"`
}

type signResponse struct {
	SignedURL string `json:"signedURL"`
}

// Sign 签发限时访问 URL.
func (c *Client) Sign(ctx context.Context, key string, expiry time.Duration) (string, error) {
	var signed string

	err := c.execute(func() error {
		body, err := sonic.Marshal(signRequest{ExpiresIn: int(expiry / time.Second)})
		if err != nil {
			return err
		}

		req, err := c.newRequest(ctx, http.MethodPost, c.objectURL("/object/sign/", key), bytes.NewReader(body))
		if err != nil {
			return err
		}

		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer drain(resp)

		if resp.StatusCode/100 != 2 {
			return statusError(resp)
		}

		var out signResponse
		if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode sign response: %w", err)
		}

		if out.SignedURL == "" {
			return errors.New("empty signedURL in response")
		}

		signed = c.absolute(out.SignedURL)

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", bundle.ErrSigningFailed, key, err)
	}

	return signed, nil
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
	defer drain(resp)

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: %v", bundle.ErrFetchFailed, statusError(resp))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bundle.ErrFetchFailed, err)
	}

	return data, nil
}

// Delete 删除对象，404 视为成功.
func (c *Client) Delete(ctx context.Context, key string) error {
	err := c.execute(func() error {
		req, err := c.newRequest(ctx, http.MethodDelete, c.objectURL("/object/", key), nil)
		if err != nil {
			return err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer drain(resp)

		if resp.StatusCode == http.StatusNotFound || resp.StatusCode/100 == 2 {
			return nil
		}

		return statusError(resp)
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", bundle.ErrDeleteFailed, key, err)
	}

	return nil
}

// HealthCheck 检查存储服务可达.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.baseURL+apiPrefix+"/bucket/"+url.PathEscape(c.bucket), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode/100 != 2 {
		return statusError(resp)
	}

	return nil
}

func (c *Client) execute(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}

	_, err := c.breaker.Execute(func() (any, error) {
		return nil, fn()
	})

	return err
}

func (c *Client) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("apikey", c.key)

	return req, nil
}

// objectURL 拼接 <base>/storage/v1<op><bucket>/<key>，逐段转义 key.
func (c *Client) objectURL(op, key string) string {
	segments := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}

	return c.baseURL + apiPrefix + op + url.PathEscape(c.bucket) + "/" + strings.Join(segments, "/")
}

// absolute 把响应中的 signedURL 转成完整地址.
// Supabase 返回相对于 /storage/v1 的路径（/object/sign/...），兼容已带前缀或完整 URL 的情况.
func (c *Client) absolute(signed string) string {
	switch {
	case strings.HasPrefix(signed, "http://"), strings.HasPrefix(signed, "https://"):
		return signed
	case strings.HasPrefix(signed, "/object/"):
		return c.baseURL + apiPrefix + signed
	case strings.HasPrefix(signed, "/"):
		return c.baseURL + signed
	default:
		return c.baseURL + "/" + signed
	}
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
