package types

import "github.com/yeisme/flowvault/pkg/internal/model"

// FileInfo 文件记录及其签名 URL，签名失败时 URL 为空.
type FileInfo struct {
	model.File
	URL string `json:"url,omitempty"`
}

// SignedURLRequest 获取签名 URL 的查询参数.
type SignedURLRequest struct {
	ExpiresIn int `form:"expires_in" json:"expires_in" rule:"omitempty,min=1,max=604800"`
}

// SignedURLResponse 签名 URL 结果.
type SignedURLResponse struct {
	FileID    uint   `json:"file_id"`
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"` // 秒
}

// Asset 按路径访问的资源：小文件直接返回 Data，大文件返回 RedirectURL.
type Asset struct {
	File        model.File
	Data        []byte
	RedirectURL string
}

// PurgeReport 清理软删除记录的结果.
type PurgeReport struct {
	Objects  int   `json:"objects"`
	Failed   int   `json:"failed"`
	Versions int64 `json:"versions"`
	Flows    int64 `json:"flows"`
}
