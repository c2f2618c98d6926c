package handle

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/flowvault/pkg/configs"
	ctxPkg "github.com/yeisme/flowvault/pkg/context"
)

const timeout = 2 * time.Second

// kvProbeKey 写入后立即删除的探测键.
const kvProbeKey = "health.probe"

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// probe 组件探测函数. optional 的组件不可用时 readiness 仍为 ok.
type probe struct {
	name     string
	optional bool
	check    func(ctx context.Context) error
}

var errNotInitialized = errors.New("not initialized")

func probes() map[string]probe {
	return map[string]probe{
		"db": {name: "db", check: func(ctx context.Context) error {
			dbc := ctxPkg.GetDBClient(ctx)
			if dbc == nil || dbc.DB == nil {
				return errNotInitialized
			}

			sqlDB, err := dbc.DB.DB()
			if err != nil {
				return err
			}

			return sqlDB.PingContext(ctx)
		}},
		"storage": {name: "storage", check: func(ctx context.Context) error {
			gw := ctxPkg.GetGateway(ctx)
			if gw == nil {
				return errNotInitialized
			}

			if hc, ok := gw.(healthChecker); ok {
				return hc.HealthCheck(ctx)
			}

			return nil
		}},
		"kv": {name: "kv", optional: true, check: func(ctx context.Context) error {
			kvc := ctxPkg.GetKVClient(ctx)
			if kvc == nil {
				return errNotInitialized
			}

			if err := kvc.Set(ctx, kvProbeKey, []byte("1"), time.Minute); err != nil {
				return err
			}

			if _, err := kvc.Get(ctx, kvProbeKey); err != nil {
				return err
			}

			return kvc.Delete(ctx, kvProbeKey)
		}},
		"mq": {name: "mq", optional: true, check: func(ctx context.Context) error {
			if !configs.GetConfig().Events.Enabled {
				return nil
			}

			if ctxPkg.GetMQClient(ctx) == nil {
				return errNotInitialized
			}

			return nil
		}},
	}
}

func runProbe(c *gin.Context, p probe) (gin.H, bool) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	start := time.Now()
	err := p.check(ctx)

	res := gin.H{"component": p.name, "status": "ok", "latency_ms": time.Since(start).Milliseconds()}
	if err != nil {
		res["status"] = "unhealthy"
		res["error"] = err.Error()
	}

	return res, err == nil
}

// Health 进程存活检查.
//
//	@Summary	存活检查
//	@Tags		健康检查
//	@Produce	json
//	@Success	200	{object}	map[string]any
//	@Router		/api/v1/health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": configs.AppVersion})
}

// HealthComponent 单个组件健康检查，组件名来自路由参数.
//
//	@Summary	组件健康检查
//	@Tags		健康检查
//	@Produce	json
//	@Param		component	path		string	true	"db | storage | kv | mq"
//	@Success	200			{object}	map[string]any
//	@Failure	404			{object}	map[string]any
//	@Failure	503			{object}	map[string]any
//	@Router		/api/v1/health/{component} [get]
func HealthComponent(c *gin.Context) {
	p, ok := probes()[c.Param("component")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown component"})
		return
	}

	res, healthy := runProbe(c, p)
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, res)
		return
	}

	c.JSON(http.StatusOK, res)
}

// HealthReady 并发检查全部组件，必需组件失败时返回 503.
//
//	@Summary	就绪检查
//	@Tags		健康检查
//	@Produce	json
//	@Success	200	{object}	map[string]any
//	@Failure	503	{object}	map[string]any
//	@Router		/api/v1/health/ready [get]
func HealthReady(c *gin.Context) {
	all := probes()

	var (
		mu         sync.Mutex
		components = make([]gin.H, 0, len(all))
		ready      = true
	)

	var g errgroup.Group

	for _, p := range all {
		g.Go(func() error {
			res, healthy := runProbe(c, p)

			mu.Lock()
			defer mu.Unlock()

			components = append(components, res)
			if !healthy && !p.optional {
				ready = false
			}

			return nil
		})
	}

	_ = g.Wait()

	sort.Slice(components, func(i, j int) bool {
		return components[i]["component"].(string) < components[j]["component"].(string)
	})

	status, code := "ok", http.StatusOK
	if !ready {
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{"status": status, "version": configs.AppVersion, "components": components})
}
