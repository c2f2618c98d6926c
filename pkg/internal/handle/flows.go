package handle

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/flowvault/pkg/internal/service"
	"github.com/yeisme/flowvault/pkg/internal/types"
	"github.com/yeisme/flowvault/pkg/log"
)

// PublishFlow 发布新流程.
//
//	@Summary		发布流程
//	@Description	上传 zip 压缩包或单个文件，创建流程及其第 1 个版本
//	@Tags			流程
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			title		formData	string	true	"标题"
//	@Param			description	formData	string	false	"描述"
//	@Param			sector_code	formData	string	true	"部门编码"
//	@Param			tags		formData	string	false	"逗号分隔的标签"
//	@Param			file		formData	file	true	"zip 压缩包或单个文件"
//	@Success		201			{object}	types.PublishResponse
//	@Failure		400			{object}	map[string]string	"请求参数错误"
//	@Failure		404			{object}	map[string]string	"部门不存在"
//	@Failure		422			{object}	map[string]string	"压缩包无法读取或没有可导入的文件"
//	@Router			/api/v1/flows [post]
func PublishFlow(c *gin.Context) {
	who, err := actor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req types.PublishFlowRequest
	if !bind(c, &req) {
		return
	}

	up, err := readUpload(c)
	if err != nil {
		respondError(c, err, "failed to read upload")
		return
	}

	ctx := c.Request.Context()

	resp, err := service.NewFlowService(ctx).Publish(ctx, &req, up, who)
	if err != nil {
		respondError(c, err, "failed to publish flow")
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ListFlows 分页列出流程.
//
//	@Summary		流程列表
//	@Tags			流程
//	@Produce		json
//	@Param			sector	query		string	false	"部门编码"
//	@Param			status	query		string	false	"状态"	Enums(draft, published, archived, in_review)
//	@Param			q		query		string	false	"标题、编码、描述或标签关键字"
//	@Param			page	query		int		false	"页码"
//	@Param			size	query		int		false	"每页数量"
//	@Success		200		{object}	types.FlowListResponse
//	@Router			/api/v1/flows [get]
func ListFlows(c *gin.Context) {
	var req types.ListFlowsRequest
	if !bind(c, &req) {
		return
	}

	ctx := c.Request.Context()

	resp, err := service.NewFlowService(ctx).List(ctx, &req)
	if err != nil {
		respondError(c, err, "failed to list flows")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetFlow 流程详情.
//
//	@Summary		流程详情
//	@Description	返回流程、版本列表与当前版本文件，入口文件附带签名 URL
//	@Tags			流程
//	@Produce		json
//	@Param			id	path		int	true	"流程 ID"
//	@Success		200	{object}	types.FlowDetail
//	@Failure		404	{object}	map[string]string
//	@Router			/api/v1/flows/{id} [get]
func GetFlow(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()

	detail, err := service.NewFlowService(ctx).Get(ctx, id)
	if err != nil {
		respondError(c, err, "failed to get flow")
		return
	}

	c.JSON(http.StatusOK, detail)
}

// UpdateFlowStatus 修改流程状态.
//
//	@Summary		修改状态
//	@Tags			流程
//	@Produce		json
//	@Param			id		path		int		true	"流程 ID"
//	@Param			status	query		string	true	"新状态"	Enums(draft, published, archived, in_review)
//	@Success		200		{object}	model.Flow
//	@Failure		400		{object}	map[string]string
//	@Failure		403		{object}	map[string]string
//	@Router			/api/v1/flows/{id}/status [patch]
func UpdateFlowStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	who, err := actor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	flow, err := service.NewFlowService(ctx).UpdateStatus(ctx, id, c.Query("status"), who)
	if err != nil {
		respondError(c, err, "failed to update flow status")
		return
	}

	c.JSON(http.StatusOK, flow)
}

// DeleteFlow 删除流程，存储对象由清理任务移除.
//
//	@Summary		删除流程
//	@Tags			流程
//	@Param			id	path	int	true	"流程 ID"
//	@Success		204
//	@Failure		403	{object}	map[string]string
//	@Failure		404	{object}	map[string]string
//	@Router			/api/v1/flows/{id} [delete]
func DeleteFlow(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	who, err := actor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	if err := service.NewFlowService(ctx).Delete(ctx, id, who); err != nil {
		respondError(c, err, "failed to delete flow")
		return
	}

	c.Status(http.StatusNoContent)
}

// PublishVersion 发布新版本.
//
//	@Summary		发布新版本
//	@Tags			流程
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			id		path		int		true	"流程 ID"
//	@Param			notes	formData	string	false	"版本说明"
//	@Param			file	formData	file	true	"zip 压缩包或单个文件"
//	@Success		201		{object}	types.PublishResponse
//	@Failure		403		{object}	map[string]string
//	@Failure		422		{object}	map[string]string
//	@Router			/api/v1/flows/{id}/versions [post]
func PublishVersion(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	who, err := actor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	var req types.PublishVersionRequest
	if !bind(c, &req) {
		return
	}

	up, err := readUpload(c)
	if err != nil {
		respondError(c, err, "failed to read upload")
		return
	}

	ctx := c.Request.Context()

	resp, err := service.NewFlowService(ctx).PublishVersion(ctx, id, up, req.Notes, who)
	if err != nil {
		respondError(c, err, "failed to publish version")
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// RenderFlow 渲染流程入口文档.
//
//	@Summary		渲染入口文档
//	@Description	返回改写了包内引用的 HTML，version 缺省为最新版本
//	@Tags			渲染
//	@Produce		html
//	@Param			id		path	int	true	"流程 ID"
//	@Param			version	query	int	false	"版本号"
//	@Success		200		{string}	string	"HTML"
//	@Failure		404		{object}	map[string]string
//	@Router			/api/v1/flows/{id}/render [get]
func RenderFlow(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var number *int

	if raw := c.Query("version"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid version"})
			return
		}

		number = &n
	}

	ctx := c.Request.Context()

	out, err := service.NewRenderService(ctx).RenderPrimary(ctx, id, number)
	if err != nil {
		respondError(c, err, "failed to render flow")
		return
	}

	l := log.Logger()
	l.Debug().Uint("flow_id", id).Int("bytes", len(out)).Msg("flow rendered")

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(out))
}
