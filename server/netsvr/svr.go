package netsvr

import (
	"net/http"

	"github.com/zintix-labs/drawlab/server/app"
)

// NetSvr 封裝路由與服務啟停。只給最外層組裝使用，其他層面向 NetRouter。
// NetSvr 本身就是 app.Component，可以直接交給 app.App 管理。
type NetSvr interface {
	NetRouter
	app.Component
	Handler() http.Handler
}

// NetRouter 只有路由行為，不含 Run/Shutdown。
type NetRouter interface {
	Use(middleware func(http.Handler) http.Handler)

	Get(path string, h http.HandlerFunc)
	Post(path string, h http.HandlerFunc)
	Put(path string, h http.HandlerFunc)
	Delete(path string, h http.HandlerFunc)

	Group(path string, fn func(NetRouter))
}
