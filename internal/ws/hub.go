package ws

import (
	"encoding/json"
	"sync"

	"shopadmin/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Envelope 是推送给客户端的统一事件格式。
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub 维护按用户身份索引的连接注册表，一个用户可以同时持有多个连接（多端登录）。
// 断线重连不回放错过的事件，客户端需要自行重新拉取历史。
type Hub struct {
	mu    sync.RWMutex
	conns map[uint]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{conns: make(map[uint]map[*Client]bool)}
}

// Register 把连接挂到用户名下，除登记外不做任何初始状态同步。
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set := h.conns[c.userID]
	if set == nil {
		set = make(map[*Client]bool)
		h.conns[c.userID] = set
	}
	set[c] = true
	h.mu.Unlock()
	metrics.HubConnections.Inc()
}

// Unregister 摘除连接并关闭其发送队列，用户名下没有连接时清掉整个键。
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	set := h.conns[c.userID]
	if set == nil || !set[c] {
		h.mu.Unlock()
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, c.userID)
	}
	h.mu.Unlock()
	close(c.send)
	metrics.HubConnections.Dec()
}

// Online 返回某个用户当前的连接数。
func (h *Hub) Online(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// SendToUser 把事件推给该用户的全部在线连接；用户不在线时静默跳过，
// 消息本身始终可以通过历史接口取回。发送队列已满的连接视为死连接摘除。
func (h *Hub) SendToUser(userID uint, event string, payload interface{}) {
	b, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("hub marshal event")
		return
	}
	var stale []*Client
	h.mu.RLock()
	for c := range h.conns[userID] {
		select {
		case c.send <- b:
		default:
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range stale {
		h.Unregister(c)
	}
	metrics.HubEventsTotal.WithLabelValues(event).Inc()
}
