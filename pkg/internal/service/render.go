package service

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/yeisme/flowvault/pkg/cache"
	"github.com/yeisme/flowvault/pkg/internal/bundle"
	"github.com/yeisme/flowvault/pkg/internal/model"
	"github.com/yeisme/flowvault/pkg/metrics"
	"github.com/yeisme/flowvault/pkg/tracing"
)

const (
	renderPrimary = "primary"
	renderFile    = "file"

	urlMapKeyPrefix = cache.URLMapPrefix
)

// RenderService 渲染 HTML 入口文档，把包内相对引用改写为签名 URL.
type RenderService struct {
	Deps
}

// NewRenderService 从 context 构建.
func NewRenderService(ctx context.Context) *RenderService {
	return &RenderService{Deps: depsFromContext(ctx)}
}

// NewRenderServiceWith 使用给定依赖构建.
func NewRenderServiceWith(d Deps) *RenderService {
	return &RenderService{Deps: d}
}

// RenderPrimary 渲染流程某个版本的入口文档，number 为 nil 时取编号最大的版本.
func (s *RenderService) RenderPrimary(ctx context.Context, flowID uint, number *int) (out string, err error) {
	n := 0
	if number != nil {
		n = *number
	}

	ctx, span := tracing.StartFlowSpan(ctx, "render_primary", flowID, n)
	defer func() {
		observeRender(renderPrimary, err)
		tracing.End(span, err)
	}()

	db := s.DB.WithContext(ctx)

	version, err := findVersion(db, flowID, number)
	if err != nil {
		return "", err
	}

	files, err := versionFiles(db, version.ID)
	if err != nil {
		return "", err
	}

	entry, ok := bundle.ResolveMarkup(files)
	if !ok {
		return "", fmt.Errorf("%w: flow %d version %d", bundle.ErrNoEntryDocument, flowID, version.Number)
	}

	return s.render(ctx, version.ID, entry, files)
}

// RenderFile 渲染版本中的任意 HTML 文件.
func (s *RenderService) RenderFile(ctx context.Context, fileID uint) (out string, err error) {
	ctx, span := tracing.StartSpan(ctx, "flowvault.render_file", trace.WithAttributes(tracing.AttrFileID.Int64(int64(fileID))))
	defer func() {
		observeRender(renderFile, err)
		tracing.End(span, err)
	}()

	db := s.DB.WithContext(ctx)

	f, err := fileByID(db, fileID)
	if err != nil {
		return "", err
	}

	if !f.IsMarkup() {
		return "", fmt.Errorf("%w: %s", bundle.ErrNotMarkup, f.OriginalPath)
	}

	files, err := versionFiles(db, f.VersionID)
	if err != nil {
		return "", err
	}

	return s.render(ctx, f.VersionID, *f, files)
}

// PreviewFile 返回 HTML 文件的原始文本，不改写引用.
func (s *RenderService) PreviewFile(ctx context.Context, fileID uint) (string, error) {
	f, err := fileByID(s.DB.WithContext(ctx), fileID)
	if err != nil {
		return "", err
	}

	if !f.IsMarkup() {
		return "", fmt.Errorf("%w: %s", bundle.ErrNotMarkup, f.OriginalPath)
	}

	return s.markup(ctx, f)
}

func (s *RenderService) render(ctx context.Context, versionID uint, entry model.File, files []model.File) (string, error) {
	markup, err := s.markup(ctx, &entry)
	if err != nil {
		return "", err
	}

	return bundle.Rewrite(markup, s.urls(ctx, versionID, files))
}

// markup 优先使用快照，快照为空时通过签名 URL 下载.
func (s *RenderService) markup(ctx context.Context, f *model.File) (string, error) {
	if f.Snapshot != "" {
		return f.Snapshot, nil
	}

	url, err := s.Gateway.Sign(ctx, f.StorageKey, s.Bundle.GetSignExpiry())
	if err != nil {
		return "", err
	}

	data, err := s.Gateway.Fetch(ctx, url)
	if err != nil {
		return "", err
	}

	return strings.ToValidUTF8(string(data), "\uFFFD"), nil
}

// urls 构建路径映射；配置了缓存时按版本与文件集合缓存，缓存时间短于签名有效期.
func (s *RenderService) urls(ctx context.Context, versionID uint, files []model.File) bundle.URLMap {
	renderer := bundle.NewRenderer(s.Gateway, s.Bundle.GetSignExpiry())

	ttl := s.Bundle.GetURLMapCacheTTL()
	if s.Cache == nil || ttl <= 0 {
		return renderer.URLs(ctx, files)
	}

	urls, hit, err := cache.GetOrLoad(ctx, s.Cache, urlMapKey(versionID, files),
		func(ctx context.Context) (bundle.URLMap, error) {
			return renderer.URLs(ctx, files), nil
		}, ttl)
	if err != nil {
		s.logger().Warn().Err(err).Uint("version_id", versionID).Msg("url map cache failed")
		return renderer.URLs(ctx, files)
	}

	if hit {
		metrics.URLMapCache.WithLabelValues("hit").Inc()
	} else {
		metrics.URLMapCache.WithLabelValues("miss").Inc()
	}

	return urls
}

// urlMapKey urlmap.<version>.<文件集合摘要>，文件增删后自然换键.
func urlMapKey(versionID uint, files []model.File) string {
	h := xxhash.New()

	var buf [8]byte

	for _, f := range bundle.SortFiles(files) {
		binary.LittleEndian.PutUint64(buf[:], uint64(f.ID))
		_, _ = h.Write(buf[:])
		_, _ = h.WriteString(f.StorageKey)
	}

	return urlMapKeyPrefix + strconv.FormatUint(uint64(versionID), 10) + "." + strconv.FormatUint(h.Sum64(), 16)
}

// invalidateURLMap 删除版本的映射缓存. 部分 KV 实现不支持遍历或删除，失败只记录日志.
func invalidateURLMap(ctx context.Context, c *cache.Cache, versionID uint, logger *zerolog.Logger) {
	if c == nil {
		return
	}

	pattern := urlMapKeyPrefix + strconv.FormatUint(uint64(versionID), 10) + ".*"
	if _, err := c.DeleteMatching(ctx, pattern); err != nil {
		logger.Debug().Err(err).Uint("version_id", versionID).Msg("url map cache not invalidated")
	}
}

// invalidateRender 删除流程的渲染响应缓存，使新版本或删除立即生效.
func invalidateRender(ctx context.Context, c *cache.Cache, flowID uint, logger *zerolog.Logger) {
	if c == nil {
		return
	}

	if _, err := c.DeleteMatching(ctx, cache.RenderFlowPattern(flowID)); err != nil {
		logger.Debug().Err(err).Uint("flow_id", flowID).Msg("render cache not invalidated")
	}
}

// findVersion 流程不存在或版本不存在都返回 ErrVersionNotFound.
func findVersion(db *gorm.DB, flowID uint, number *int) (*model.Version, error) {
	var flow model.Flow
	if err := db.Select("id").First(&flow, flowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: flow %d", bundle.ErrVersionNotFound, flowID)
		}

		return nil, err
	}

	q := db.Where("flow_id = ?", flowID)
	if number != nil {
		q = q.Where("number = ?", *number)
	}

	var version model.Version
	if err := q.Order("number DESC").First(&version).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: flow %d", bundle.ErrVersionNotFound, flowID)
		}

		return nil, err
	}

	return &version, nil
}

func fileByID(db *gorm.DB, id uint) (*model.File, error) {
	var f model.File
	if err := db.First(&f, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", bundle.ErrFileNotFound, id)
		}

		return nil, err
	}

	return &f, nil
}

func observeRender(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}

	metrics.RenderTotal.WithLabelValues(kind, result).Inc()
}
