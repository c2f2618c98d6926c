// Package model 定义持久化到关系数据库的记录：部门、流程、版本与文件.
package model

// Models 返回需要迁移的全部模型，顺序即建表顺序.
func Models() []any {
	return []any{
		&Sector{},
		&Flow{},
		&Version{},
		&File{},
	}
}
