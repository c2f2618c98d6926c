package service

import (
	"errors"

	"github.com/yeisme/flowvault/pkg/internal/bundle"
)

var (
	ErrFlowNotFound   = errors.New("flow not found")
	ErrSectorNotFound = errors.New("sector not found")
	// ErrForbidden 非发布者且非管理员.
	ErrForbidden = errors.New("forbidden")
	// ErrNothingIngested 压缩包中没有任何条目存储成功.
	ErrNothingIngested = errors.New("nothing ingested")
	ErrInvalidStatus   = errors.New("invalid status")
	// ErrEmptyUpload 上传内容为空.
	ErrEmptyUpload = errors.New("empty upload")
	// ErrUploadTooLarge 上传超过压缩包大小上限.
	ErrUploadTooLarge = errors.New("upload too large")
)

// IsNotFound 判断是否为"不存在"一类的错误.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound) ||
		errors.Is(err, ErrSectorNotFound) ||
		bundle.IsNotFound(err)
}

// IsInvalidInput 判断是否为上传内容或参数不合法.
func IsInvalidInput(err error) bool {
	return errors.Is(err, bundle.ErrArchiveUnreadable) ||
		errors.Is(err, bundle.ErrNotMarkup) ||
		errors.Is(err, bundle.ErrEntryTooLarge) ||
		errors.Is(err, ErrNothingIngested) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrEmptyUpload) ||
		errors.Is(err, ErrUploadTooLarge)
}
