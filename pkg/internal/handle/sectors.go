package handle

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/flowvault/pkg/internal/service"
)

// ListSectors 列出全部部门.
//
//	@Summary		部门列表
//	@Tags			部门
//	@Produce		json
//	@Success		200	{object}	map[string][]model.Sector
//	@Router			/api/v1/sectors [get]
func ListSectors(c *gin.Context) {
	ctx := c.Request.Context()

	sectors, err := service.NewSectorService(ctx).List(ctx)
	if err != nil {
		respondError(c, err, "failed to list sectors")
		return
	}

	c.JSON(http.StatusOK, gin.H{"sectors": sectors})
}
