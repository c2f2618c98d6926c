package bundle

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/oklog/ulid"
	"github.com/rs/zerolog"

	"github.com/yeisme/flowvault/pkg/configs"
	"github.com/yeisme/flowvault/pkg/internal/model"
	nlog "github.com/yeisme/flowvault/pkg/log"
	"github.com/yeisme/flowvault/pkg/metrics"
)

// Target 导入目标版本.
type Target struct {
	VersionID uint   // 已创建的版本记录 ID
	FlowCode  string // 流程编码，用作存储键命名空间
	Version   int    // 版本号
}

// Report 一次导入的结果.
type Report struct {
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"`
	Files     []model.File `json:"-"`
	Errors    []EntryError `json:"-"`
}

// AllFailed 有条目且全部失败.
func (r Report) AllFailed() bool {
	return r.Succeeded == 0 && r.Failed > 0
}

// Ingester 压缩包导入引擎.
type Ingester struct {
	gateway       Gateway
	recorder      FileRecorder
	logger        *zerolog.Logger
	keyPrefix     string
	maxEntryBytes int64

	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// IngesterOption 配置 Ingester.
type IngesterOption func(*Ingester)

// WithKeyPrefix 设置存储键前缀.
func WithKeyPrefix(prefix string) IngesterOption {
	return func(i *Ingester) {
		i.keyPrefix = strings.Trim(prefix, "/")
	}
}

// WithMaxEntryBytes 设置单个条目的大小上限，<=0 表示不限制.
func WithMaxEntryBytes(n int64) IngesterOption {
	return func(i *Ingester) {
		i.maxEntryBytes = n
	}
}

// WithLogger 设置日志器.
func WithLogger(l *zerolog.Logger) IngesterOption {
	return func(i *Ingester) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithClock 设置时间源，影响存储键后缀中的时间部分.
func WithClock(now func() time.Time) IngesterOption {
	return func(i *Ingester) {
		i.now = now
	}
}

// NewIngester 创建导入引擎.
func NewIngester(gw Gateway, rec FileRecorder, opts ...IngesterOption) *Ingester {
	i := &Ingester{
		gateway:       gw,
		recorder:      rec,
		logger:        nlog.Logger(),
		keyPrefix:     configs.DefaultKeyPrefix,
		maxEntryBytes: configs.DefaultMaxEntryBytes,
		entropy:       ulid.Monotonic(crand.Reader, 0),
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Ingest 顺序处理压缩包中的每个条目.
// 只有压缩包本身无法打开时返回 ErrArchiveUnreadable；条目级失败记录在 Report 中.
func (i *Ingester) Ingest(ctx context.Context, archive []byte, target Target) (Report, error) {
	var report Report

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return report, fmt.Errorf("%w: %v", ErrArchiveUnreadable, err)
	}

	start := time.Now()
	defer func() {
		metrics.IngestDuration.Observe(time.Since(start).Seconds())
	}()

	logger := i.logger.With().
		Str("flow", target.FlowCode).
		Int("version", target.Version).
		Logger()

	seen := make(map[string]struct{}, len(zr.File))

	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() || strings.HasSuffix(entry.Name, "/") {
			continue
		}

		if Ignored(entry.Name) {
			report.Skipped++
			metrics.IngestEntries.WithLabelValues(metrics.ResultIgnored).Inc()
			logger.Debug().Str("path", entry.Name).Msg("ignored archive entry")

			continue
		}

		rel := trimDotSlash(entry.Name)
		if _, dup := seen[rel]; dup {
			report.Skipped++
			metrics.IngestEntries.WithLabelValues(metrics.ResultSkipped).Inc()
			logger.Warn().Str("path", entry.Name).Msg("duplicate archive entry, keeping first occurrence")

			continue
		}

		seen[rel] = struct{}{}

		f, err := i.processEntry(ctx, entry, target)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, EntryError{Path: entry.Name, Err: err})
			metrics.IngestEntries.WithLabelValues(metrics.ResultFailed).Inc()
			logger.Error().Err(err).Str("path", entry.Name).Msg("archive entry failed")

			continue
		}

		report.Succeeded++
		report.Files = append(report.Files, *f)
		metrics.IngestEntries.WithLabelValues(metrics.ResultSucceeded).Inc()
	}

	logger.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("archive ingested")

	return report, nil
}

// processEntry 读取并存储单个条目.
func (i *Ingester) processEntry(ctx context.Context, entry *zip.File, target Target) (*model.File, error) {
	data, err := i.readEntry(entry)
	if err != nil {
		return nil, err
	}

	return i.store(ctx, entry.Name, data, target)
}

// StoreFile 存储单个非压缩包文件，命名与记录规则与压缩包条目相同.
func (i *Ingester) StoreFile(ctx context.Context, name string, data []byte, target Target) (model.File, error) {
	if i.maxEntryBytes > 0 && int64(len(data)) > i.maxEntryBytes {
		return model.File{}, fmt.Errorf("%w: %d bytes", ErrEntryTooLarge, len(data))
	}

	f, err := i.store(ctx, name, data, target)
	if err != nil {
		return model.File{}, err
	}

	return *f, nil
}

// store 分类、上传并记录；记录失败时删除已上传的对象.
func (i *Ingester) store(ctx context.Context, name string, data []byte, target Target) (*model.File, error) {
	kind, mime := Classify(name)

	key, err := i.gateway.Upload(ctx, i.storageKey(name, target), data, mime)
	if err != nil {
		return nil, err
	}

	f := &model.File{
		VersionID:    target.VersionID,
		OriginalPath: name,
		Name:         path.Base(name),
		Kind:         kind,
		StorageKey:   key,
		Size:         int64(len(data)),
		MimeType:     mime,
	}

	if kind == KindMarkup {
		f.Snapshot = strings.ToValidUTF8(string(data), "\uFFFD")
	}

	if err := i.recorder.RecordFile(ctx, f); err != nil {
		if derr := i.gateway.Delete(ctx, key); derr != nil {
			i.logger.Warn().Err(derr).Str("key", key).Msg("failed to remove orphaned object")
		}

		return nil, fmt.Errorf("record file: %w", err)
	}

	return f, nil
}

func (i *Ingester) readEntry(entry *zip.File) ([]byte, error) {
	if i.maxEntryBytes > 0 && entry.UncompressedSize64 > uint64(i.maxEntryBytes) {
		return nil, fmt.Errorf("%w: %d bytes", ErrEntryTooLarge, entry.UncompressedSize64)
	}

	rc, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry: %w", err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if i.maxEntryBytes > 0 {
		r = io.LimitReader(rc, i.maxEntryBytes+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}

	if i.maxEntryBytes > 0 && int64(len(data)) > i.maxEntryBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrEntryTooLarge, i.maxEntryBytes)
	}

	return data, nil
}

// storageKey 生成 <prefix>/<flow>/v<version>/<base>_<ulid><ext>.
func (i *Ingester) storageKey(name string, target Target) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	parts := make([]string, 0, 4)
	if i.keyPrefix != "" {
		parts = append(parts, i.keyPrefix)
	}

	parts = append(parts,
		target.FlowCode,
		"v"+strconv.Itoa(target.Version),
		stem+"_"+i.suffix()+ext,
	)

	return strings.Join(parts, "/")
}

// suffix 生成小写 ULID，Monotonic 熵源不是并发安全的.
func (i *Ingester) suffix() string {
	i.mu.Lock()
	defer i.mu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(i.now()), i.entropy)

	return strings.ToLower(id.String())
}

func trimDotSlash(p string) string {
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}

	return p
}
