// internal/api/websocket.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Corphon/SceneScribe/internal/events"
	"github.com/Corphon/SceneScribe/internal/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketClient 表示一个订阅项目事件的连接
type WebSocketClient struct {
	conn      *websocket.Conn
	projectID string
	userID    string
	send      chan []byte
	lastPing  atomic.Int64 // unix nano
	createdAt time.Time
}

func (client *WebSocketClient) touch() {
	client.lastPing.Store(time.Now().UnixNano())
}

// IsExpired 检查连接是否超时
func (client *WebSocketClient) IsExpired(timeout time.Duration) bool {
	if timeout <= 0 {
		return true
	}
	return time.Since(time.Unix(0, client.lastPing.Load())) > timeout
}

// WebSocketManager 按项目分组管理连接
type WebSocketManager struct {
	connections map[string]map[*WebSocketClient]struct{} // projectID -> clients
	register    chan *WebSocketClient
	unregister  chan *WebSocketClient
	done        chan struct{}
	stopped     chan struct{}
	stopOnce    sync.Once
	mutex       sync.RWMutex
	pingTimeout time.Duration
}

// NewWebSocketManager 创建并启动管理器主循环
func NewWebSocketManager(pingTimeout time.Duration) *WebSocketManager {
	if pingTimeout <= 0 {
		pingTimeout = 2 * pongWait
	}
	manager := &WebSocketManager{
		connections: make(map[string]map[*WebSocketClient]struct{}),
		register:    make(chan *WebSocketClient, 64),
		unregister:  make(chan *WebSocketClient, 64),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		pingTimeout: pingTimeout,
	}
	go manager.run()
	return manager
}

// run 运行 WebSocket 管理器主循环
func (manager *WebSocketManager) run() {
	defer close(manager.stopped)

	cleanupTicker := time.NewTicker(30 * time.Second)
	defer cleanupTicker.Stop()

	for {
		select {
		case client := <-manager.register:
			manager.registerClient(client)
		case client := <-manager.unregister:
			manager.unregisterClient(client)
		case <-cleanupTicker.C:
			manager.cleanupExpiredConnections()
		case <-manager.done:
			manager.shutdown()
			return
		}
	}
}

// registerClient 注册新客户端并发送欢迎消息
func (manager *WebSocketManager) registerClient(client *WebSocketClient) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if manager.connections[client.projectID] == nil {
		manager.connections[client.projectID] = make(map[*WebSocketClient]struct{})
	}
	manager.connections[client.projectID][client] = struct{}{}
	client.touch()

	welcome, _ := json.Marshal(map[string]interface{}{
		"type":      "connected",
		"projectId": client.projectID,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	client.send <- welcome

	utils.GetLogger().Info("✅ WebSocket 客户端已连接", map[string]interface{}{
		"project_id": client.projectID,
		"user_id":    client.userID,
	})
}

// unregisterClient 移除客户端；send 通道只在这里关闭
func (manager *WebSocketManager) unregisterClient(client *WebSocketClient) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if manager.removeLocked(client) {
		utils.GetLogger().Info("🔌 WebSocket 客户端已断开连接", map[string]interface{}{
			"project_id": client.projectID,
			"user_id":    client.userID,
		})
	}
}

func (manager *WebSocketManager) removeLocked(client *WebSocketClient) bool {
	clients, exists := manager.connections[client.projectID]
	if !exists {
		return false
	}
	if _, ok := clients[client]; !ok {
		return false
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(manager.connections, client.projectID)
	}
	return true
}

// cleanupExpiredConnections 清理长时间没有 pong 的连接
func (manager *WebSocketManager) cleanupExpiredConnections() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	for _, clients := range manager.connections {
		for client := range clients {
			if client.IsExpired(manager.pingTimeout) {
				manager.removeLocked(client)
			}
		}
	}
}

// shutdown 关闭全部连接
func (manager *WebSocketManager) shutdown() {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	for _, clients := range manager.connections {
		for client := range clients {
			close(client.send)
		}
	}
	manager.connections = make(map[string]map[*WebSocketClient]struct{})
	utils.GetLogger().Info("✅ WebSocket 管理器已关闭", nil)
}

// Shutdown 停止主循环并断开所有客户端
func (manager *WebSocketManager) Shutdown() {
	manager.stopOnce.Do(func() { close(manager.done) })
	<-manager.stopped
}

// BroadcastToProject 向项目内的所有连接发送消息，返回成功入队的数量
func (manager *WebSocketManager) BroadcastToProject(projectID string, message map[string]interface{}) int {
	msgBytes, err := json.Marshal(message)
	if err != nil {
		utils.GetLogger().Error("❌ 序列化广播消息失败", map[string]interface{}{"err": err})
		return 0
	}

	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	sent := 0
	for client := range manager.connections[projectID] {
		select {
		case client.send <- msgBytes:
			sent++
		default:
			utils.GetLogger().Warn("⚠️ 客户端消息队列已满，消息被丢弃", map[string]interface{}{
				"project_id": projectID,
				"user_id":    client.userID,
			})
		}
	}
	return sent
}

// ConnectionCount 返回项目的在线连接数
func (manager *WebSocketManager) ConnectionCount(projectID string) int {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()
	return len(manager.connections[projectID])
}

// GetStatus 获取管理器状态
func (manager *WebSocketManager) GetStatus() map[string]interface{} {
	manager.mutex.RLock()
	defer manager.mutex.RUnlock()

	projects := make(map[string]int, len(manager.connections))
	total := 0
	for projectID, clients := range manager.connections {
		projects[projectID] = len(clients)
		total += len(clients)
	}
	return map[string]interface{}{
		"total_projects":    len(manager.connections),
		"total_connections": total,
		"projects":          projects,
	}
}

// ForwardNoteEvents 把摄取事件转发给对应项目的连接，stream 关闭后返回
func (manager *WebSocketManager) ForwardNoteEvents(ctx context.Context, stream <-chan events.NoteIngested) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-stream:
			if !ok {
				return
			}
			projectID := evt.ProjectID
			if projectID == "" {
				projectID = DefaultProjectID
			}
			manager.BroadcastToProject(projectID, map[string]interface{}{
				"type":       "note_ingested",
				"noteId":     evt.NoteID,
				"category":   evt.Category,
				"characters": evt.Characters,
				"locations":  evt.Locations,
				"events":     evt.Events,
				"timestamp":  evt.OccurredAt.Format(time.RFC3339),
			})
		}
	}
}

// DefaultProjectID 未指定项目的笔记归入此房间
const DefaultProjectID = "default"

// ServeProject 升级连接并加入项目房间
func (manager *WebSocketManager) ServeProject(c *gin.Context) {
	projectID := c.Param("id")
	userID, _ := GetUserFromContext(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.GetLogger().Warn("WebSocket 升级失败", map[string]interface{}{"err": err})
		return
	}

	client := &WebSocketClient{
		conn:      conn,
		projectID: projectID,
		userID:    userID,
		send:      make(chan []byte, sendBuffer),
		createdAt: time.Now(),
	}

	select {
	case manager.register <- client:
	case <-manager.done:
		conn.Close()
		return
	}

	go manager.writePump(client)
	manager.readPump(client)
}

// readPump 只处理控制帧与断开；客户端消息被丢弃
func (manager *WebSocketManager) readPump(client *WebSocketClient) {
	defer func() {
		select {
		case manager.unregister <- client:
		case <-manager.done:
		}
		client.conn.Close()
	}()

	client.conn.SetReadLimit(maxMessageSize)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.touch()
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.GetLogger().Debug("WebSocket 读取错误", map[string]interface{}{"err": err})
			}
			return
		}
		client.touch()
	}
}

func (manager *WebSocketManager) writePump(client *WebSocketClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
