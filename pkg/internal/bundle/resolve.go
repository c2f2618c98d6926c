package bundle

import (
	"sort"
	"strings"

	"github.com/yeisme/flowvault/pkg/internal/model"
)

// SortFiles 按 (ID, OriginalPath) 排序的副本，保证兜底选择确定.
func SortFiles(files []model.File) []model.File {
	out := make([]model.File, len(files))
	copy(out, files)

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].ID != out[b].ID {
			return out[a].ID < out[b].ID
		}

		return out[a].OriginalPath < out[b].OriginalPath
	})

	return out
}

// ResolvePrimary 选择版本的入口文件：
// index.html > 根目录 html > 任意 pdf > 第一个文件. 仅在输入为空时返回 false.
func ResolvePrimary(files []model.File) (model.File, bool) {
	if len(files) == 0 {
		return model.File{}, false
	}

	sorted := SortFiles(files)

	if f, ok := findIndex(sorted); ok {
		return f, true
	}

	if f, ok := findRootHTML(sorted); ok {
		return f, true
	}

	for _, f := range sorted {
		if strings.HasSuffix(strings.ToLower(f.OriginalPath), ".pdf") {
			return f, true
		}
	}

	return sorted[0], true
}

// ResolveMarkup 选择用于渲染的 HTML 入口：
// index.html > 根目录 html > 任意层级的 html/htm. 不接受非 HTML 兜底.
func ResolveMarkup(files []model.File) (model.File, bool) {
	sorted := SortFiles(files)

	if f, ok := findIndex(sorted); ok {
		return f, true
	}

	if f, ok := findRootHTML(sorted); ok {
		return f, true
	}

	for _, f := range sorted {
		lower := strings.ToLower(f.OriginalPath)
		if strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm") {
			return f, true
		}
	}

	return model.File{}, false
}

func findIndex(files []model.File) (model.File, bool) {
	for _, f := range files {
		if strings.EqualFold(f.OriginalPath, "index.html") {
			return f, true
		}
	}

	return model.File{}, false
}

func findRootHTML(files []model.File) (model.File, bool) {
	for _, f := range files {
		lower := strings.ToLower(f.OriginalPath)
		if strings.HasSuffix(lower, ".html") && !strings.ContainsAny(lower, "/\\") {
			return f, true
		}
	}

	return model.File{}, false
}
