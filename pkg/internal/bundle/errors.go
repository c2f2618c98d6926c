package bundle

import (
	"errors"
	"fmt"
)

var (
	// ErrArchiveUnreadable 压缩包无法打开或读取目录.
	ErrArchiveUnreadable = errors.New("archive unreadable")
	// ErrEntryProcessingFailed 单个条目处理失败，只计数不中断.
	ErrEntryProcessingFailed = errors.New("entry processing failed")
	// ErrEntryTooLarge 条目超过单文件大小上限.
	ErrEntryTooLarge = errors.New("entry too large")

	ErrUploadFailed  = errors.New("upload failed")
	ErrSigningFailed = errors.New("signing failed")
	ErrFetchFailed   = errors.New("fetch failed")
	ErrDeleteFailed  = errors.New("delete failed")

	ErrVersionNotFound   = errors.New("version not found")
	ErrFileNotFound      = errors.New("file not found")
	ErrNoEntryDocument   = errors.New("no entry document")
	ErrNotMarkup         = errors.New("file is not markup")
	ErrMarkupUnparseable = errors.New("markup unparseable")
)

// EntryError 单个压缩包条目的处理错误.
type EntryError struct {
	Path string
	Err  error
}

func (e EntryError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrEntryProcessingFailed, e.Path, e.Err)
}

// Unwrap 同时暴露 ErrEntryProcessingFailed 与底层原因.
func (e EntryError) Unwrap() []error {
	return []error{ErrEntryProcessingFailed, e.Err}
}

// IsNotFound 判断是否为"不存在"一类的错误.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrVersionNotFound) ||
		errors.Is(err, ErrFileNotFound) ||
		errors.Is(err, ErrNoEntryDocument)
}
