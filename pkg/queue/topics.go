// Package queue 定义消息主题常量，供发布/订阅使用.
package queue

// 主题命名规范：fv.<域>.<动作>，尽量稳定且向后兼容.
// 域：flow(流程)、version(版本)、bundle(压缩包导入)、object(对象存储)

const (
	// 流程领域.
	TopicFlowPublished     = "fv.flow.published"      // 新流程发布（含第 1 版）
	TopicFlowStatusChanged = "fv.flow.status_changed" // 流程状态变更
	TopicFlowDeleted       = "fv.flow.deleted"        // 流程被软删除，等待清理

	// 版本领域.
	TopicVersionPublished = "fv.version.published" // 流程发布了新版本

	// 压缩包导入.
	TopicBundleIngested = "fv.bundle.ingested" // 压缩包导入完成（含成功/失败计数）

	// 对象存储领域.
	TopicObjectPurged   = "fv.object.purged"   // 软删除文件对应的存储对象已清理
	TopicObjectAccessed = "fv.object.accessed" // 对象被访问（用于热点统计）
)

// 主题分组，用于批量订阅或权限控制.
var (
	FlowTopics = []string{
		TopicFlowPublished, TopicFlowStatusChanged, TopicFlowDeleted, TopicVersionPublished,
	}

	ObjectTopics = []string{
		TopicBundleIngested, TopicObjectPurged, TopicObjectAccessed,
	}
)
