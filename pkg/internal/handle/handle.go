// Package handle 提供 HTTP 请求处理器的实现.
package handle

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/flowvault/pkg/configs"
	"github.com/yeisme/flowvault/pkg/internal/bundle"
	"github.com/yeisme/flowvault/pkg/internal/service"
	"github.com/yeisme/flowvault/pkg/log"
	"github.com/yeisme/flowvault/pkg/middleware"
	"github.com/yeisme/flowvault/pkg/rule"
)

const uploadField = "file"

// actor 当前请求的操作者. 非 Release 模式下匿名请求按测试用户处理.
func actor(c *gin.Context) (service.Actor, error) {
	id := middleware.GetIdentity(c)

	email := id.Email
	if email == "" && gin.Mode() != gin.ReleaseMode {
		email = "test-user@example.com"
	}

	if err := rule.ValidateVar(email, "required,email"); err != nil {
		return service.Actor{}, err
	}

	return service.Actor{Email: email, Admin: id.Role >= middleware.RoleAdmin}, nil
}

// bind 绑定并按 rule 标签校验请求参数.
func bind(c *gin.Context, req any) bool {
	err := c.ShouldBind(req)
	if err == nil {
		err = rule.ValidateStruct(req)
	}

	if err != nil {
		l := log.Logger()
		l.Warn().Err(err).Msg("invalid request")
		resp := gin.H{"error": err.Error()}
		if fields := rule.Errors(err); fields != nil {
			resp["fields"] = fields
		}

		c.JSON(http.StatusBadRequest, resp)

		return false
	}

	return true
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}

	return uint(id), true
}

func intParam(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil || n < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}

	return n, true
}

// readUpload 读取 multipart 中的 file 字段，超过压缩包上限时拒绝.
func readUpload(c *gin.Context) (service.Upload, error) {
	fh, err := c.FormFile(uploadField)
	if err != nil {
		return service.Upload{}, fmt.Errorf("%w: %v", service.ErrEmptyUpload, err)
	}

	limit := configs.GetConfig().Bundle.MaxArchiveBytes
	if limit > 0 && fh.Size > limit {
		return service.Upload{}, fmt.Errorf("%w: %d bytes", service.ErrUploadTooLarge, fh.Size)
	}

	f, err := fh.Open()
	if err != nil {
		return service.Upload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return service.Upload{}, err
	}

	return service.Upload{Name: fh.Filename, Data: data}, nil
}

// respondError 按错误类别返回状态码.
func respondError(c *gin.Context, err error, msg string) {
	l := log.Logger()

	status := http.StatusInternalServerError

	switch {
	case service.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrUploadTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, bundle.ErrNotMarkup), errors.Is(err, bundle.ErrArchiveUnreadable),
		errors.Is(err, service.ErrNothingIngested):
		status = http.StatusUnprocessableEntity
	case service.IsInvalidInput(err):
		status = http.StatusBadRequest
	case errors.Is(err, bundle.ErrSigningFailed), errors.Is(err, bundle.ErrFetchFailed),
		errors.Is(err, bundle.ErrUploadFailed):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		l.Error().Err(err).Str("path", c.Request.URL.Path).Msg(msg)
	} else {
		l.Warn().Err(err).Str("path", c.Request.URL.Path).Msg(msg)
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
