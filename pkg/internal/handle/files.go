package handle

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/flowvault/pkg/configs"
	"github.com/yeisme/flowvault/pkg/internal/service"
	"github.com/yeisme/flowvault/pkg/internal/types"
)

// ListVersionFiles 列出版本文件及签名 URL.
//
//	@Summary		版本文件列表
//	@Tags			文件
//	@Produce		json
//	@Param			id		path		int	true	"流程 ID"
//	@Param			number	path		int	true	"版本号"
//	@Success		200		{object}	map[string][]types.FileInfo
//	@Failure		404		{object}	map[string]string
//	@Router			/api/v1/flows/{id}/versions/{number}/files [get]
func ListVersionFiles(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	number, ok := intParam(c, "number")
	if !ok {
		return
	}

	ctx := c.Request.Context()

	files, err := service.NewFileService(ctx).ListVersionFiles(ctx, id, number)
	if err != nil {
		respondError(c, err, "failed to list version files")
		return
	}

	c.JSON(http.StatusOK, gin.H{"files": files})
}

// ServeAsset 按包内路径访问资源，小文件直接返回，大文件重定向到签名 URL.
//
//	@Summary		按路径访问资源
//	@Tags			文件
//	@Param			id		path	int		true	"流程 ID"
//	@Param			number	path	int		true	"版本号"
//	@Param			path	path	string	true	"包内相对路径"
//	@Success		200
//	@Success		302
//	@Failure		404	{object}	map[string]string
//	@Router			/api/v1/flows/{id}/versions/{number}/assets/{path} [get]
func ServeAsset(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	number, ok := intParam(c, "number")
	if !ok {
		return
	}

	rel := strings.TrimPrefix(c.Param("path"), "/")
	ctx := c.Request.Context()

	asset, err := service.NewFileService(ctx).ServeByPath(ctx, id, number, rel)
	if err != nil {
		respondError(c, err, "failed to serve asset")
		return
	}

	if asset.RedirectURL != "" {
		c.Redirect(http.StatusFound, asset.RedirectURL)
		return
	}

	maxAge := configs.GetConfig().Bundle.AssetCacheMaxAge
	if maxAge <= 0 {
		maxAge = configs.DefaultAssetCacheMaxAge
	}

	c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
	c.Data(http.StatusOK, asset.File.MimeType, asset.Data)
}

// GetFileURL 获取文件签名 URL.
//
//	@Summary		文件签名 URL
//	@Tags			文件
//	@Produce		json
//	@Param			id			path		int	true	"文件 ID"
//	@Param			expires_in	query		int	false	"有效期（秒），最长 604800"
//	@Success		200			{object}	types.SignedURLResponse
//	@Failure		404			{object}	map[string]string
//	@Router			/api/v1/files/{id}/url [get]
func GetFileURL(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req types.SignedURLRequest
	if !bind(c, &req) {
		return
	}

	ctx := c.Request.Context()

	resp, err := service.NewFileService(ctx).SignedURL(ctx, id, time.Duration(req.ExpiresIn)*time.Second)
	if err != nil {
		respondError(c, err, "failed to sign file url")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// DownloadFile 重定向到文件签名 URL.
//
//	@Summary		下载文件
//	@Tags			文件
//	@Param			id	path	int	true	"文件 ID"
//	@Success		302
//	@Failure		404	{object}	map[string]string
//	@Router			/api/v1/files/{id}/download [get]
func DownloadFile(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()

	url, _, err := service.NewFileService(ctx).Download(ctx, id)
	if err != nil {
		respondError(c, err, "failed to download file")
		return
	}

	c.Redirect(http.StatusFound, url)
}

// RenderFile 渲染任意 HTML 文件.
//
//	@Summary		渲染文件
//	@Tags			渲染
//	@Produce		html
//	@Param			id	path		int	true	"文件 ID"
//	@Success		200	{string}	string	"HTML"
//	@Failure		404	{object}	map[string]string
//	@Failure		422	{object}	map[string]string	"不是 HTML 文件"
//	@Router			/api/v1/files/{id}/render [get]
func RenderFile(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()

	out, err := service.NewRenderService(ctx).RenderFile(ctx, id)
	if err != nil {
		respondError(c, err, "failed to render file")
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(out))
}

// PreviewFile 返回 HTML 文件原文.
//
//	@Summary		预览文件原文
//	@Tags			渲染
//	@Produce		plain
//	@Param			id	path		int	true	"文件 ID"
//	@Success		200	{string}	string	"原始 HTML"
//	@Failure		422	{object}	map[string]string
//	@Router			/api/v1/files/{id}/preview [get]
func PreviewFile(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()

	out, err := service.NewRenderService(ctx).PreviewFile(ctx, id)
	if err != nil {
		respondError(c, err, "failed to preview file")
		return
	}

	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(out))
}
