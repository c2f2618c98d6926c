package bundle

import (
	"context"
	"time"

	"github.com/yeisme/flowvault/pkg/internal/model"
)

// Signer 为已存储对象签发限时访问 URL.
type Signer interface {
	Sign(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Gateway 对象存储网关.
// 所有调用同步阻塞，不做内部重试；错误以 ErrUploadFailed 等哨兵错误包装.
type Gateway interface {
	Signer
	// Upload 上传数据，返回实际存储键.
	Upload(ctx context.Context, key string, data []byte, mimeType string) (string, error)
	// Fetch 通过签名 URL 下载数据.
	Fetch(ctx context.Context, url string) ([]byte, error)
	// Delete 删除对象，对象不存在视为成功.
	Delete(ctx context.Context, key string) error
}

// FileRecorder 持久化导入产生的 File 记录，成功后 f.ID 应被填充.
type FileRecorder interface {
	RecordFile(ctx context.Context, f *model.File) error
}

// RecorderFunc 函数适配 FileRecorder.
type RecorderFunc func(ctx context.Context, f *model.File) error

// RecordFile 实现 FileRecorder.
func (fn RecorderFunc) RecordFile(ctx context.Context, f *model.File) error {
	return fn(ctx, f)
}
