package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// FlowStatus 流程状态.
type FlowStatus string

const (
	FlowStatusDraft     FlowStatus = "draft"
	FlowStatusPublished FlowStatus = "published"
	FlowStatusArchived  FlowStatus = "archived"
	FlowStatusInReview  FlowStatus = "in_review"
)

// Valid 判断状态是否合法.
func (s FlowStatus) Valid() bool {
	switch s {
	case FlowStatusDraft, FlowStatusPublished, FlowStatusArchived, FlowStatusInReview:
		return true
	default:
		return false
	}
}

// Flow 一个流程文档，拥有递增的版本序列.
type Flow struct {
	ID             uint           `gorm:"primaryKey"                 json:"id"`
	Code           string         `gorm:"size:32;uniqueIndex"        json:"code"`
	Title          string         `gorm:"size:255;not null;index"    json:"title"`
	Description    string         `gorm:"type:text"                  json:"description"`
	SectorID       uint           `gorm:"index;not null"             json:"sector_id"`
	Sector         *Sector        `gorm:"foreignKey:SectorID"        json:"sector,omitempty"`
	Status         FlowStatus     `gorm:"size:16;index;not null"     json:"status"`
	Tags           string         `gorm:"size:512"                   json:"tags"`
	CurrentVersion int            `gorm:"not null;default:1"         json:"current_version"`
	Views          int64          `gorm:"not null;default:0"         json:"views"`
	PublishedBy    string         `gorm:"size:255;index"             json:"published_by"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index"                      json:"-"`
}

// TagList 拆分逗号分隔的标签.
func (f *Flow) TagList() []string {
	if f.Tags == "" {
		return nil
	}

	parts := strings.Split(f.Tags, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}

// Version 流程的一个不可变版本快照.
type Version struct {
	ID          uint           `gorm:"primaryKey"                             json:"id"`
	FlowID      uint           `gorm:"not null;uniqueIndex:idx_flow_number"   json:"flow_id"`
	Number      int            `gorm:"not null;uniqueIndex:idx_flow_number"   json:"number"`
	Notes       string         `gorm:"type:text"                              json:"notes"`
	PublishedBy string         `gorm:"size:255"                               json:"published_by"`
	CreatedAt   time.Time      `json:"created_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index"                                  json:"-"`
}
