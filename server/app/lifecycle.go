package app

import "context"

// Component 是可啟動、可關閉的長期元件，例如 HTTP server。
//   - Run 阻塞到元件停止
//   - Shutdown 要求優雅關閉，需尊重 ctx 的期限
type Component interface {
	Run() error
	Shutdown(ctx context.Context) error
}
