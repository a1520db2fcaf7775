// Package editor 是AI辅助编辑的无界面客户端引擎。
//
// 它负责识别表面上的选区或光标点击，计算浮动弹窗的位置，保证两种弹窗互斥，
// 并把异步返回的文本安全地写回文档。所有回调都在同一个 Loop 协程上执行；
// 网络请求在其他协程中进行，结果通过 Loop.Post 投递回来。
package editor
