package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"gorm.io/gorm"
)

// FileKind 文件内容类别.
type FileKind string

const (
	KindMarkup     FileKind = "markup"
	KindStylesheet FileKind = "stylesheet"
	KindScript     FileKind = "script"
	KindImage      FileKind = "image"
	KindDocument   FileKind = "document"
	KindOther      FileKind = "other"
)

// File 版本中的一个已存储文件.
// OriginalPath 为压缩包内的完整相对路径，原样保存，是引用改写时的查找键.
// 唯一约束建在 PathKey 上，按字节区分路径且不受列排序规则与索引长度限制.
type File struct {
	ID           uint     `gorm:"primaryKey"                                    json:"id"`
	VersionID    uint     `gorm:"not null;index;uniqueIndex:idx_version_path"   json:"version_id"`
	OriginalPath string   `gorm:"size:1024;not null"                            json:"original_path"`
	PathKey      string   `gorm:"size:64;not null;uniqueIndex:idx_version_path" json:"-"`
	Name         string   `gorm:"size:512"                                      json:"name"`
	Kind         FileKind `gorm:"size:16;index"                               json:"kind"`
	StorageKey   string   `gorm:"size:1024"                                     json:"storage_key"`
	Size         int64    `json:"size"`
	MimeType     string   `gorm:"size:128"                                      json:"mime_type"`
	// Snapshot 仅 markup 文件保存的 UTF-8 文本快照.
	Snapshot  string         `gorm:"type:text"  json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index"      json:"-"`
}

// IsMarkup 是否为 HTML 文件.
func (f *File) IsMarkup() bool {
	return f.Kind == KindMarkup
}

// PathKeyOf 路径原始字节的 sha256 十六进制摘要.
func PathKeyOf(originalPath string) string {
	sum := sha256.Sum256([]byte(originalPath))
	return hex.EncodeToString(sum[:])
}

// BeforeSave 写入前按 OriginalPath 重算 PathKey.
func (f *File) BeforeSave(_ *gorm.DB) error {
	f.PathKey = PathKeyOf(f.OriginalPath)
	return nil
}
