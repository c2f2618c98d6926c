package service

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/yeisme/flowvault/pkg/configs"
	"github.com/yeisme/flowvault/pkg/internal/model"
)

// SectorService 部门查询与初始化.
type SectorService struct {
	Deps
}

// NewSectorService 从 context 构建.
func NewSectorService(ctx context.Context) *SectorService {
	return &SectorService{Deps: depsFromContext(ctx)}
}

// NewSectorServiceWith 使用给定依赖构建.
func NewSectorServiceWith(d Deps) *SectorService {
	return &SectorService{Deps: d}
}

// List 按编码排序返回全部部门.
func (s *SectorService) List(ctx context.Context) ([]model.Sector, error) {
	var sectors []model.Sector
	if err := s.DB.WithContext(ctx).Order("code").Find(&sectors).Error; err != nil {
		return nil, err
	}

	return sectors, nil
}

// GetByCode 按编码查找部门，大小写不敏感.
func (s *SectorService) GetByCode(ctx context.Context, code string) (*model.Sector, error) {
	return sectorByCode(s.DB.WithContext(ctx), code)
}

// Seed 按编码补齐缺失的部门，已存在的不修改，返回新建数量.
func (s *SectorService) Seed(ctx context.Context, seeds []configs.SectorSeed) (int, error) {
	created := 0

	for _, seed := range seeds {
		code := strings.ToUpper(strings.TrimSpace(seed.Code))
		if code == "" {
			continue
		}

		sector := model.Sector{Code: code}

		res := s.DB.WithContext(ctx).
			Where(model.Sector{Code: code}).
			Attrs(model.Sector{Name: seed.Name, Description: seed.Description}).
			FirstOrCreate(&sector)
		if res.Error != nil {
			return created, res.Error
		}

		if res.RowsAffected > 0 {
			created++
		}
	}

	if created > 0 {
		s.logger().Info().Int("created", created).Msg("sectors seeded")
	}

	return created, nil
}

func sectorByCode(db *gorm.DB, code string) (*model.Sector, error) {
	var sector model.Sector

	err := db.Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&sector).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSectorNotFound
	}

	if err != nil {
		return nil, err
	}

	return &sector, nil
}
