package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yeisme/flowvault/pkg/internal/bundle"
	"github.com/yeisme/flowvault/pkg/internal/model"
	"github.com/yeisme/flowvault/pkg/internal/types"
	"github.com/yeisme/flowvault/pkg/queue"
	"github.com/yeisme/flowvault/pkg/tracing"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	initialNotes    = "initial version"
)

// FlowService 流程发布与版本管理.
type FlowService struct {
	Deps
}

// NewFlowService 从 context 构建.
func NewFlowService(ctx context.Context) *FlowService {
	return &FlowService{Deps: depsFromContext(ctx)}
}

// NewFlowServiceWith 使用给定依赖构建.
func NewFlowServiceWith(d Deps) *FlowService {
	return &FlowService{Deps: d}
}

// Publish 创建流程及其第 1 个版本并导入上传内容.
// 没有任何文件存储成功时回滚流程与版本.
func (s *FlowService) Publish(ctx context.Context, req *types.PublishFlowRequest, up Upload, actor Actor) (*types.PublishResponse, error) {
	if err := s.checkUpload(up); err != nil {
		return nil, err
	}

	var (
		flow    model.Flow
		version model.Version
		sector  *model.Sector
	)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error

		sector, err = sectorByCode(tx, req.SectorCode)
		if err != nil {
			return err
		}

		code, err := nextFlowCode(tx, sector)
		if err != nil {
			return err
		}

		flow = model.Flow{
			Code:           code,
			Title:          strings.TrimSpace(req.Title),
			Description:    req.Description,
			SectorID:       sector.ID,
			Status:         model.FlowStatusDraft,
			Tags:           normalizeTags(req.Tags),
			CurrentVersion: 1,
			PublishedBy:    actor.Email,
		}
		if err := tx.Create(&flow).Error; err != nil {
			return fmt.Errorf("create flow: %w", err)
		}

		version = model.Version{
			FlowID:      flow.ID,
			Number:      1,
			Notes:       initialNotes,
			PublishedBy: actor.Email,
		}
		if err := tx.Create(&version).Error; err != nil {
			return fmt.Errorf("create version: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	flow.Sector = sector

	report, err := s.ingest(ctx, up, &flow, &version)
	if err == nil && report.Succeeded == 0 {
		err = fmt.Errorf("%w: %d failed, %d skipped", ErrNothingIngested, report.Failed, report.Skipped)
	}

	if err != nil {
		s.discard(ctx, &version, &flow)
		return nil, err
	}

	s.logger().Info().
		Str("flow", flow.Code).
		Int("files", report.Succeeded).
		Msg("flow published")

	if perr := s.Events.FlowPublished(queue.FlowPublishedPayload{
		Flow:        queue.FlowRef{FlowID: flow.ID, Code: flow.Code, Version: version.Number},
		Title:       flow.Title,
		Sector:      sector.Code,
		PublishedBy: actor.Email,
		Files:       report.Succeeded,
	}); perr != nil {
		s.logger().Warn().Err(perr).Str("flow", flow.Code).Msg("failed to publish flow event")
	}

	return &types.PublishResponse{Flow: flow, Version: version, Report: types.NewIngestReport(report)}, nil
}

// PublishVersion 为已有流程发布新版本，仅发布者或管理员可操作.
func (s *FlowService) PublishVersion(ctx context.Context, flowID uint, up Upload, notes string, actor Actor) (*types.PublishResponse, error) {
	flow, err := s.flowByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if !actor.CanModify(flow) {
		return nil, ErrForbidden
	}

	if err := s.checkUpload(up); err != nil {
		return nil, err
	}

	var version model.Version

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int

		// 包含软删除的版本，避免与待清理记录冲突.
		if err := tx.Unscoped().Model(&model.Version{}).
			Where("flow_id = ?", flow.ID).
			Select("COALESCE(MAX(number), 0)").
			Scan(&last).Error; err != nil {
			return err
		}

		version = model.Version{
			FlowID:      flow.ID,
			Number:      max(last, flow.CurrentVersion) + 1,
			Notes:       notes,
			PublishedBy: actor.Email,
		}

		return tx.Create(&version).Error
	})
	if err != nil {
		return nil, fmt.Errorf("create version: %w", err)
	}

	report, err := s.ingest(ctx, up, flow, &version)
	if err == nil && report.Succeeded == 0 {
		err = fmt.Errorf("%w: %d failed, %d skipped", ErrNothingIngested, report.Failed, report.Skipped)
	}

	if err != nil {
		s.discard(ctx, &version, nil)
		return nil, err
	}

	if err := s.DB.WithContext(ctx).Model(flow).Update("current_version", version.Number).Error; err != nil {
		return nil, fmt.Errorf("bump current version: %w", err)
	}

	flow.CurrentVersion = version.Number
	invalidateRender(ctx, s.Cache, flow.ID, s.logger())

	if perr := s.Events.VersionPublished(queue.FlowPublishedPayload{
		Flow:        queue.FlowRef{FlowID: flow.ID, Code: flow.Code, Version: version.Number},
		Title:       flow.Title,
		PublishedBy: actor.Email,
		Files:       report.Succeeded,
	}); perr != nil {
		s.logger().Warn().Err(perr).Str("flow", flow.Code).Msg("failed to publish version event")
	}

	return &types.PublishResponse{Flow: *flow, Version: version, Report: types.NewIngestReport(report)}, nil
}

// Ingest 将压缩包导入到已存在的版本.
// 压缩包无法打开时返回 ErrArchiveUnreadable，条目级失败只体现在 Report 中.
func (s *FlowService) Ingest(ctx context.Context, archive []byte, version model.Version) (bundle.Report, error) {
	flow, err := s.flowByID(ctx, version.FlowID)
	if err != nil {
		return bundle.Report{}, err
	}

	return s.ingest(ctx, Upload{Name: "bundle.zip", Data: archive}, flow, &version)
}

func (s *FlowService) ingest(ctx context.Context, up Upload, flow *model.Flow, version *model.Version) (report bundle.Report, err error) {
	ctx, span := tracing.StartFlowSpan(ctx, "ingest", flow.ID, version.Number)
	span.SetAttributes(tracing.AttrFlowCode.String(flow.Code))

	defer func() {
		span.SetAttributes(
			tracing.AttrEntries.Int(report.Succeeded+report.Failed+report.Skipped),
			tracing.AttrSucceeded.Int(report.Succeeded),
		)
		tracing.End(span, err)
	}()

	target := bundle.Target{VersionID: version.ID, FlowCode: flow.Code, Version: version.Number}
	ing := s.ingester(s.DB)

	if up.IsArchive() {
		r, err := ing.Ingest(ctx, up.Data, target)
		if err != nil {
			return r, err
		}

		report = r
	} else {
		f, err := ing.StoreFile(ctx, up.Name, up.Data, target)
		if err != nil {
			report.Failed = 1
			report.Errors = append(report.Errors, bundle.EntryError{Path: up.Name, Err: err})
		} else {
			report.Succeeded = 1
			report.Files = append(report.Files, f)
		}
	}

	invalidateURLMap(ctx, s.Cache, version.ID, s.logger())

	if err := s.Events.BundleIngested(queue.BundleIngestedPayload{
		Flow:      queue.FlowRef{FlowID: flow.ID, Code: flow.Code, Version: version.Number},
		VersionID: version.ID,
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
		Skipped:   report.Skipped,
	}, eventOpts(ctx)...); err != nil {
		s.logger().Warn().Err(err).Str("flow", flow.Code).Msg("failed to publish ingest event")
	}

	return report, nil
}

// List 按部门、状态与关键字过滤并分页.
func (s *FlowService) List(ctx context.Context, req *types.ListFlowsRequest) (*types.FlowListResponse, error) {
	page, size := req.Page, req.Size
	if page < 1 {
		page = 1
	}

	if size < 1 {
		size = defaultPageSize
	}

	size = min(size, maxPageSize)

	db := s.DB.WithContext(ctx)
	q := db.Model(&model.Flow{})

	if req.Sector != "" {
		q = q.Where("sector_id IN (?)",
			db.Model(&model.Sector{}).Select("id").Where("code = ?", strings.ToUpper(req.Sector)))
	}

	if req.Status != "" {
		q = q.Where("status = ?", req.Status)
	}

	if term := strings.TrimSpace(req.Query); term != "" {
		like := "%" + term + "%"
		q = q.Where("title LIKE ? OR code LIKE ? OR description LIKE ? OR tags LIKE ?", like, like, like, like)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	items := make([]model.Flow, 0, size)
	if err := q.Preload("Sector").
		Order("updated_at DESC").Order("id DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&items).Error; err != nil {
		return nil, err
	}

	return &types.FlowListResponse{Items: items, Total: total, Page: page, Size: size}, nil
}

// Get 返回流程详情并增加浏览次数. 入口文件附带签名 URL.
func (s *FlowService) Get(ctx context.Context, id uint) (*types.FlowDetail, error) {
	db := s.DB.WithContext(ctx)

	var flow model.Flow
	if err := db.Preload("Sector").First(&flow, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFlowNotFound
		}

		return nil, err
	}

	if err := db.Model(&flow).UpdateColumn("views", gorm.Expr("views + ?", 1)).Error; err != nil {
		s.logger().Warn().Err(err).Uint("flow_id", flow.ID).Msg("failed to increment views")
	} else {
		flow.Views++
	}

	var versions []model.Version
	if err := db.Where("flow_id = ?", flow.ID).Order("number DESC").Find(&versions).Error; err != nil {
		return nil, err
	}

	detail := &types.FlowDetail{Flow: flow, Versions: versions, Files: []types.FileInfo{}}

	current, ok := currentVersion(versions, flow.CurrentVersion)
	if !ok {
		return detail, nil
	}

	files, err := versionFiles(db, current.ID)
	if err != nil {
		return nil, err
	}

	for _, f := range files {
		detail.Files = append(detail.Files, types.FileInfo{File: f})
	}

	if primary, ok := bundle.ResolvePrimary(files); ok {
		info := types.FileInfo{File: primary}

		url, err := s.Gateway.Sign(ctx, primary.StorageKey, s.Bundle.GetSignExpiry())
		if err != nil {
			s.logger().Warn().Err(err).Str("key", primary.StorageKey).Msg("failed to sign primary document")
		} else {
			info.URL = url
		}

		detail.Primary = &info
	}

	return detail, nil
}

// UpdateStatus 修改流程状态，仅发布者或管理员可操作.
func (s *FlowService) UpdateStatus(ctx context.Context, id uint, status string, actor Actor) (*model.Flow, error) {
	next := model.FlowStatus(status)
	if !next.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	flow, err := s.flowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !actor.CanModify(flow) {
		return nil, ErrForbidden
	}

	prev := flow.Status
	if prev == next {
		return flow, nil
	}

	if err := s.DB.WithContext(ctx).Model(flow).Update("status", next).Error; err != nil {
		return nil, err
	}

	flow.Status = next
	invalidateRender(ctx, s.Cache, flow.ID, s.logger())

	if perr := s.Events.FlowStatusChanged(queue.FlowStatusChangedPayload{
		Flow: queue.FlowRef{FlowID: flow.ID, Code: flow.Code, Version: flow.CurrentVersion},
		From: string(prev),
		To:   string(next),
		By:   actor.Email,
	}); perr != nil {
		s.logger().Warn().Err(perr).Str("flow", flow.Code).Msg("failed to publish status event")
	}

	return flow, nil
}

// Delete 软删除流程及其全部版本与文件，存储对象由清理任务移除.
func (s *FlowService) Delete(ctx context.Context, id uint, actor Actor) error {
	flow, err := s.flowByID(ctx, id)
	if err != nil {
		return err
	}

	if !actor.CanModify(flow) {
		return ErrForbidden
	}

	var versions int64

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		versionIDs := tx.Model(&model.Version{}).Select("id").Where("flow_id = ?", flow.ID)

		if err := tx.Where("version_id IN (?)", versionIDs).Delete(&model.File{}).Error; err != nil {
			return fmt.Errorf("delete files: %w", err)
		}

		res := tx.Where("flow_id = ?", flow.ID).Delete(&model.Version{})
		if res.Error != nil {
			return fmt.Errorf("delete versions: %w", res.Error)
		}

		versions = res.RowsAffected

		return tx.Delete(flow).Error
	})
	if err != nil {
		return err
	}

	s.logger().Info().Str("flow", flow.Code).Int64("versions", versions).Msg("flow deleted")
	invalidateRender(ctx, s.Cache, flow.ID, s.logger())

	if perr := s.Events.FlowDeleted(queue.FlowDeletedPayload{
		Flow:      queue.FlowRef{FlowID: flow.ID, Code: flow.Code},
		DeletedBy: actor.Email,
		Versions:  int(versions),
	}, eventOpts(ctx, queue.WithDedupKey(fmt.Sprint(flow.ID)))...); perr != nil {
		s.logger().Warn().Err(perr).Str("flow", flow.Code).Msg("failed to publish delete event")
	}

	return nil
}

func (s *FlowService) flowByID(ctx context.Context, id uint) (*model.Flow, error) {
	var flow model.Flow
	if err := s.DB.WithContext(ctx).First(&flow, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFlowNotFound
		}

		return nil, err
	}

	return &flow, nil
}

func (s *FlowService) checkUpload(up Upload) error {
	if len(up.Data) == 0 {
		return ErrEmptyUpload
	}

	if limit := s.Bundle.MaxArchiveBytes; limit > 0 && int64(len(up.Data)) > limit {
		return fmt.Errorf("%w: %d bytes", ErrUploadTooLarge, len(up.Data))
	}

	return nil
}

// discard 硬删除导入失败的版本及其已记录的文件，flow 非 nil 时一并删除.
func (s *FlowService) discard(ctx context.Context, version *model.Version, flow *model.Flow) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("version_id = ?", version.ID).Delete(&model.File{}).Error; err != nil {
			return err
		}

		if err := tx.Unscoped().Delete(version).Error; err != nil {
			return err
		}

		if flow != nil {
			return tx.Unscoped().Delete(flow).Error
		}

		return nil
	})
	if err != nil {
		s.logger().Error().Err(err).Uint("version_id", version.ID).Msg("failed to discard empty version")
	}
}

// nextFlowCode 生成 <SECTOR>-%03d，序号取该部门历史流程数+1，遇到占用则顺延.
func nextFlowCode(tx *gorm.DB, sector *model.Sector) (string, error) {
	var count int64
	if err := tx.Unscoped().Model(&model.Flow{}).Where("sector_id = ?", sector.ID).Count(&count).Error; err != nil {
		return "", err
	}

	for n := count + 1; ; n++ {
		code := fmt.Sprintf("%s-%03d", sector.Code, n)

		var taken int64
		if err := tx.Unscoped().Model(&model.Flow{}).Where("code = ?", code).Count(&taken).Error; err != nil {
			return "", err
		}

		if taken == 0 {
			return code, nil
		}
	}
}

func normalizeTags(raw string) string {
	f := model.Flow{Tags: raw}
	return strings.Join(f.TagList(), ",")
}

func currentVersion(versions []model.Version, number int) (model.Version, bool) {
	for _, v := range versions {
		if v.Number == number {
			return v, true
		}
	}

	// 版本按 number 降序，兜底取最新.
	if len(versions) > 0 {
		return versions[0], true
	}

	return model.Version{}, false
}

func versionFiles(db *gorm.DB, versionID uint) ([]model.File, error) {
	var files []model.File
	if err := db.Where("version_id = ?", versionID).Order("id").Find(&files).Error; err != nil {
		return nil, err
	}

	return files, nil
}
