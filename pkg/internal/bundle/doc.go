// Package bundle 实现流程文档压缩包的导入与渲染核心.
//
// 导入：Ingester 顺序遍历 zip 条目，过滤系统垃圾文件，按扩展名分类后经 Gateway 上传，
// 并通过 FileRecorder 记录每个文件；单个条目失败只计数，不中断整个批次.
//
// 渲染：ResolveMarkup/ResolvePrimary 选出入口文档，Renderer 为版本内所有文件签发 URL，
// 再把 HTML 属性与内联 CSS 中的相对引用改写为签名 URL.
//
// Example:
//
//	ing := bundle.NewIngester(gw, recorder, bundle.WithKeyPrefix("flowvault/flows"))
//	report, err := ing.Ingest(ctx, data, bundle.Target{VersionID: v.ID, FlowCode: "TI-001", Version: 1})
//
//	r := bundle.NewRenderer(gw, time.Hour)
//	html, err := r.Render(ctx, entry.Snapshot, files)
package bundle
