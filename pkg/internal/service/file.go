package service

import (
	"context"
	"strings"
	"time"

	"github.com/yeisme/flowvault/pkg/internal/bundle"
	"github.com/yeisme/flowvault/pkg/internal/model"
	"github.com/yeisme/flowvault/pkg/internal/types"
	"github.com/yeisme/flowvault/pkg/queue"
	"github.com/yeisme/flowvault/pkg/tracing"
)

// MaxSignExpiry 签名 URL 最长有效期.
const MaxSignExpiry = 7 * 24 * time.Hour

// FileService 文件访问与清理.
type FileService struct {
	Deps
}

// NewFileService 从 context 构建.
func NewFileService(ctx context.Context) *FileService {
	return &FileService{Deps: depsFromContext(ctx)}
}

// NewFileServiceWith 使用给定依赖构建.
func NewFileServiceWith(d Deps) *FileService {
	return &FileService{Deps: d}
}

// SignedURL 为文件签发访问 URL，expiry<=0 使用默认有效期，最长 7 天.
func (s *FileService) SignedURL(ctx context.Context, fileID uint, expiry time.Duration) (*types.SignedURLResponse, error) {
	if expiry <= 0 {
		expiry = s.Bundle.GetSignExpiry()
	}

	expiry = min(expiry, MaxSignExpiry)

	f, err := fileByID(s.DB.WithContext(ctx), fileID)
	if err != nil {
		return nil, err
	}

	url, err := s.Gateway.Sign(ctx, f.StorageKey, expiry)
	if err != nil {
		return nil, err
	}

	return &types.SignedURLResponse{FileID: f.ID, URL: url, ExpiresIn: int(expiry.Seconds())}, nil
}

// Download 返回下载用的签名 URL 与文件记录.
func (s *FileService) Download(ctx context.Context, fileID uint) (string, *model.File, error) {
	f, err := fileByID(s.DB.WithContext(ctx), fileID)
	if err != nil {
		return "", nil, err
	}

	url, err := s.Gateway.Sign(ctx, f.StorageKey, s.Bundle.GetSignExpiry())
	if err != nil {
		return "", nil, err
	}

	s.accessed(f, "download")

	return url, f, nil
}

// ListVersionFiles 列出流程某个版本的文件及签名 URL.
func (s *FileService) ListVersionFiles(ctx context.Context, flowID uint, number int) ([]types.FileInfo, error) {
	db := s.DB.WithContext(ctx)

	version, err := findVersion(db, flowID, &number)
	if err != nil {
		return nil, err
	}

	files, err := versionFiles(db, version.ID)
	if err != nil {
		return nil, err
	}

	urls := bundle.NewRenderer(s.Gateway, s.Bundle.GetSignExpiry()).URLs(ctx, files)

	out := make([]types.FileInfo, 0, len(files))
	for _, f := range files {
		out = append(out, types.FileInfo{File: f, URL: urls[f.OriginalPath]})
	}

	return out, nil
}

// ServeByPath 按包内相对路径查找文件：精确匹配 > 以 "/"+path 结尾 > 包含.
// 不超过 ProxyMaxBytes 的文件直接读取返回，其余返回签名 URL 供重定向.
func (s *FileService) ServeByPath(ctx context.Context, flowID uint, number int, rel string) (*types.Asset, error) {
	db := s.DB.WithContext(ctx)

	version, err := findVersion(db, flowID, &number)
	if err != nil {
		return nil, err
	}

	files, err := versionFiles(db, version.ID)
	if err != nil {
		return nil, err
	}

	f, ok := matchPath(files, rel)
	if !ok {
		return nil, bundle.ErrFileNotFound
	}

	url, err := s.Gateway.Sign(ctx, f.StorageKey, s.Bundle.GetSignExpiry())
	if err != nil {
		return nil, err
	}

	s.accessed(&f, "asset")

	if limit := s.Bundle.ProxyMaxBytes; limit > 0 && f.Size <= limit {
		data, err := s.Gateway.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}

		return &types.Asset{File: f, Data: data}, nil
	}

	return &types.Asset{File: f, RedirectURL: url}, nil
}

// PurgeDeleted 删除 before 之前软删除的文件的存储对象并硬删除记录，
// 随后清理已无文件的软删除版本与已无版本的软删除流程.
// 单个对象删除失败时保留其记录，下次重试.
func (s *FileService) PurgeDeleted(ctx context.Context, before time.Time) (report *types.PurgeReport, err error) {
	ctx, span := tracing.StartSpan(ctx, "flowvault.purge_deleted")
	defer func() { tracing.End(span, err) }()

	db := s.DB.WithContext(ctx)
	report = &types.PurgeReport{}

	var files []model.File
	if err := db.Unscoped().
		Where("deleted_at IS NOT NULL AND deleted_at < ?", before).
		Order("id").
		Find(&files).Error; err != nil {
		return nil, err
	}

	purged := make([]queue.ObjectRef, 0, len(files))

	for _, f := range files {
		if f.StorageKey != "" {
			if err := s.Gateway.Delete(ctx, f.StorageKey); err != nil {
				report.Failed++
				s.logger().Warn().Err(err).Str("key", f.StorageKey).Msg("failed to delete object")

				continue
			}
		}

		if err := db.Unscoped().Delete(&model.File{}, f.ID).Error; err != nil {
			return report, err
		}

		report.Objects++
		purged = append(purged, queue.ObjectRef{ObjectKey: f.StorageKey, Size: f.Size, ContentType: f.MimeType})
	}

	res := db.Unscoped().
		Where("deleted_at IS NOT NULL AND deleted_at < ?", before).
		Where("NOT EXISTS (SELECT 1 FROM files WHERE files.version_id = versions.id)").
		Delete(&model.Version{})
	if res.Error != nil {
		return report, res.Error
	}

	report.Versions = res.RowsAffected

	res = db.Unscoped().
		Where("deleted_at IS NOT NULL AND deleted_at < ?", before).
		Where("NOT EXISTS (SELECT 1 FROM versions WHERE versions.flow_id = flows.id)").
		Delete(&model.Flow{})
	if res.Error != nil {
		return report, res.Error
	}

	report.Flows = res.RowsAffected

	if report.Objects > 0 || report.Failed > 0 {
		if err := s.Events.ObjectPurged(queue.ObjectPurgedPayload{Objects: purged, Failed: report.Failed}, eventOpts(ctx)...); err != nil {
			s.logger().Warn().Err(err).Msg("failed to publish purge event")
		}
	}

	return report, nil
}

func (s *FileService) accessed(f *model.File, via string) {
	if err := s.Events.ObjectAccessed(queue.ObjectAccessedPayload{
		Object: queue.ObjectRef{ObjectKey: f.StorageKey, Size: f.Size, ContentType: f.MimeType},
		FileID: f.ID,
		Via:    via,
	}); err != nil {
		s.logger().Debug().Err(err).Uint("file_id", f.ID).Msg("failed to publish access event")
	}
}

// matchPath 在确定的文件顺序上依次尝试三种匹配.
func matchPath(files []model.File, rel string) (model.File, bool) {
	rel = strings.TrimPrefix(bundle.Normalize(strings.ReplaceAll(rel, "\\", "/")), "/")
	if rel == "" {
		return model.File{}, false
	}

	sorted := bundle.SortFiles(files)

	for _, f := range sorted {
		if bundle.Normalize(f.OriginalPath) == rel {
			return f, true
		}
	}

	for _, f := range sorted {
		if strings.HasSuffix(f.OriginalPath, "/"+rel) {
			return f, true
		}
	}

	for _, f := range sorted {
		if strings.Contains(f.OriginalPath, rel) {
			return f, true
		}
	}

	return model.File{}, false
}
