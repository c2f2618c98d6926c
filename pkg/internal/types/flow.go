package types

import (
	"github.com/yeisme/flowvault/pkg/internal/bundle"
	"github.com/yeisme/flowvault/pkg/internal/model"
)

// PublishFlowRequest 发布新流程的表单字段，文件通过 multipart 的 file 字段上传.
type PublishFlowRequest struct {
	Title       string `form:"title"       json:"title"       rule:"required,max=255"`
	Description string `form:"description" json:"description" rule:"max=4000"`
	SectorCode  string `form:"sector_code" json:"sector_code" rule:"required,max=16"`
	Tags        string `form:"tags"        json:"tags"        rule:"max=512"` // 逗号分隔
}

// PublishVersionRequest 发布新版本的表单字段.
type PublishVersionRequest struct {
	Notes string `form:"notes" json:"notes" rule:"max=4000"`
}

// ListFlowsRequest 流程列表查询参数.
type ListFlowsRequest struct {
	Sector string `form:"sector" json:"sector" rule:"max=16"`
	Status string `form:"status" json:"status" rule:"omitempty,oneof=draft published archived in_review"`
	Query  string `form:"q"      json:"q"      rule:"max=255"`
	Page   int    `form:"page"   json:"page"   rule:"omitempty,min=1"`
	Size   int    `form:"size"   json:"size"   rule:"omitempty,min=1,max=100"`
}

// FlowListResponse 分页后的流程列表.
type FlowListResponse struct {
	Items []model.Flow `json:"items"`
	Total int64        `json:"total"`
	Page  int          `json:"page"`
	Size  int          `json:"size"`
}

// IngestReport 导入结果摘要.
type IngestReport struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors,omitempty"`
}

// NewIngestReport 由导入结果生成摘要.
func NewIngestReport(r bundle.Report) IngestReport {
	out := IngestReport{
		Succeeded: r.Succeeded,
		Failed:    r.Failed,
		Skipped:   r.Skipped,
	}

	for _, e := range r.Errors {
		out.Errors = append(out.Errors, e.Error())
	}

	return out
}

// PublishResponse 发布流程或版本的结果.
type PublishResponse struct {
	Flow    model.Flow    `json:"flow"`
	Version model.Version `json:"version"`
	Report  IngestReport  `json:"report"`
}

// FlowDetail 流程详情，包含版本列表与当前版本的文件.
type FlowDetail struct {
	Flow     model.Flow      `json:"flow"`
	Versions []model.Version `json:"versions"`
	Files    []FileInfo      `json:"files"`
	Primary  *FileInfo       `json:"primary,omitempty"`
}
