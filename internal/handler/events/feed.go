// Package events 把事件总线上的编排事件通过 WebSocket 推给前端。
// Feed 以延迟订阅者身份挂在总线上，协调器对它一无所知。
package events

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ctwww/cword/internal/event"
	"github.com/ctwww/cword/internal/service/orchestrator"
)

const writeTimeout = 5 * time.Second

// feedEvent 是推送给客户端的事件帧。
type feedEvent struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
	At   time.Time      `json:"at"`
}

// Feed fans orchestration events out to connected websocket clients.
type Feed struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
}

// NewFeed subscribes a deferred observer for each orchestration event type.
func NewFeed(bus *event.Bus) *Feed {
	f := &Feed{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			// 前端与后端分开部署，放开来源检查，与CORS策略一致。
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	forward := func(_ context.Context, e event.Event) { f.broadcast(e) }
	bus.SubscribeAsync(orchestrator.EventAgentSpoke, forward)
	bus.SubscribeAsync(orchestrator.EventDecisionMade, forward)
	return f
}

// RegisterRoutes 注册事件推送路由
func (f *Feed) RegisterRoutes(r chi.Router) {
	r.Get("/events/ws", f.handleWebSocket)
}

// handleWebSocket 升级连接并保持到客户端断开。
func (f *Feed) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Upgrade 失败时 gorilla 已经写好了 HTTP 错误响应。
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[events] websocket upgrade failed: %v", err)
		return
	}

	f.mu.Lock()
	f.clients[conn] = struct{}{}
	f.mu.Unlock()
	log.Printf("[events] client connected, total=%d", f.clientCount())

	// 读循环只用于感知断开，收到的内容直接丢弃。
	go func() {
		defer f.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// broadcast 把事件写给所有客户端，写失败的连接被移除。
func (f *Feed) broadcast(e event.Event) {
	frame := feedEvent{Type: e.Type, Data: e.Data, At: e.At}

	f.mu.Lock()
	defer f.mu.Unlock()
	for conn := range f.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(frame); err != nil {
			log.Printf("[events] dropping client: %v", err)
			delete(f.clients, conn)
			_ = conn.Close()
		}
	}
}

func (f *Feed) drop(conn *websocket.Conn) {
	f.mu.Lock()
	if _, ok := f.clients[conn]; ok {
		delete(f.clients, conn)
		_ = conn.Close()
	}
	f.mu.Unlock()
}

func (f *Feed) clientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}
