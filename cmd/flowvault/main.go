// Package main 启动应用程序
package main

import "github.com/yeisme/flowvault/pkg/cmd"

//	@title			FlowVault API
//	@version		0.1.0
//	@description	FlowVault 发布以 zip 打包的流程文档，存储到对象存储，并在渲染时把包内引用改写为签名 URL。

//	@license.name	MIT
//	@license.url	https://opensource.org/license/mit/

//	@contact.name	yeisme
//	@contact.email	yefun2004@gmail.com.

func main() {
	if err := cmd.Execute(); err != nil {
		panic(err)
	}
}
