package service

import (
	"context"
	"edumate_backend/pkg/logger"
	"edumate_backend/pkg/monitoring"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait           = 10 * time.Second
	pongWait            = 60 * time.Second
	pingPeriod          = (pongWait * 9) / 10
	maxMessageSize      = 512
	shardCount          = 32
	notificationChannel = "notification_channel"
)

// 推送消息类型
const (
	NotifyPointsAwarded       = "points_awarded"
	NotifyLevelUp             = "level_up"
	NotifyBadgeEarned         = "badge_earned"
	NotifyAchievementUnlocked = "achievement_unlocked"
	NotifyChallengeCompleted  = "challenge_completed"
	NotifyAttemptExpired      = "attempt_expired"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Notifier 奖励事件推送，实现可以为空操作
type Notifier interface {
	PushToUsers(userIDs []uint, msg WSMessage)
}

type Client struct {
	Hub     *NotificationHub
	Conn    *websocket.Conn
	Send    chan []byte
	UserID  uint
	Limiter *rate.Limiter
}

// readPump 只处理心跳，客户端上行消息直接丢弃，超出限速则断开
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.quit:
		}
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("WebSocket unexpected close", zap.Error(err), zap.Uint("userId", c.UserID))
			}
			break
		}
		if !c.Limiter.Allow() {
			logger.Log.Warn("Client exceeded message rate limit, closing connection", zap.Uint("userId", c.UserID))
			c.Conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "rate limit exceeded"),
				time.Now().Add(writeWait))
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type shard struct {
	clients map[uint]map[*Client]struct{}
	mu      sync.RWMutex
}

// NotificationHub 奖励通知推送。配置了 Redis 时通过 pub/sub 在多实例间广播
type NotificationHub struct {
	shards     [shardCount]*shard
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	stopOnce   sync.Once
	Redis      *redis.Client
	ctx        context.Context

	// 每个连接的上行消息限速
	ClientRate  rate.Limit
	ClientBurst int
}

func NewNotificationHub(rdb *redis.Client) *NotificationHub {
	h := &NotificationHub{
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		quit:        make(chan struct{}),
		Redis:       rdb,
		ctx:         context.Background(),
		ClientRate:  rate.Limit(5),
		ClientBurst: 10,
	}
	for i := 0; i < shardCount; i++ {
		h.shards[i] = &shard{clients: make(map[uint]map[*Client]struct{})}
	}
	return h
}

func (h *NotificationHub) getShard(userID uint) *shard {
	return h.shards[userID%shardCount]
}

type PubSubMessage struct {
	TargetUsers []uint          `json:"targetUsers"`
	Payload     json.RawMessage `json:"payload"`
}

func (h *NotificationHub) Run() {
	if h.Redis != nil {
		pubsub := h.Redis.Subscribe(h.ctx, notificationChannel)
		defer pubsub.Close()
		go func() {
			for msg := range pubsub.Channel() {
				var psMsg PubSubMessage
				if err := json.Unmarshal([]byte(msg.Payload), &psMsg); err != nil {
					logger.Log.Error("PubSub unmarshal error", zap.Error(err))
					continue
				}
				h.pushToLocalRawUsers(psMsg.TargetUsers, psMsg.Payload)
			}
		}()
	}

	for {
		select {
		case client := <-h.register:
			s := h.getShard(client.UserID)
			s.mu.Lock()
			if s.clients[client.UserID] == nil {
				s.clients[client.UserID] = make(map[*Client]struct{})
			}
			s.clients[client.UserID][client] = struct{}{}
			s.mu.Unlock()
			monitoring.NotificationClients.Inc()

		case client := <-h.unregister:
			s := h.getShard(client.UserID)
			s.mu.Lock()
			if conns, ok := s.clients[client.UserID]; ok {
				if _, ok := conns[client]; ok {
					delete(conns, client)
					close(client.Send)
					monitoring.NotificationClients.Dec()
				}
				if len(conns) == 0 {
					delete(s.clients, client.UserID)
				}
			}
			s.mu.Unlock()

		case <-h.quit:
			return
		}
	}
}

// Stop 关闭所有连接
func (h *NotificationHub) Stop() {
	h.stopOnce.Do(func() {
		logger.Log.Info("NotificationHub stopping: closing connections...")
		close(h.quit)

		closed := 0
		for i := 0; i < shardCount; i++ {
			s := h.shards[i]
			s.mu.Lock()
			for userID, conns := range s.clients {
				for client := range conns {
					close(client.Send)
					closed++
				}
				delete(s.clients, userID)
			}
			s.mu.Unlock()
		}

		monitoring.NotificationClients.Set(0)
		logger.Log.Info("NotificationHub stopped", zap.Int("closedConnections", closed))
	})
}

func (h *NotificationHub) PushToUsers(userIDs []uint, msg WSMessage) {
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		logger.Log.Error("Failed to marshal notification", zap.Error(err), zap.String("type", msg.Type))
		return
	}
	if h.Redis == nil {
		h.pushToLocalRawUsers(userIDs, msgBytes)
		return
	}

	payload, _ := json.Marshal(PubSubMessage{TargetUsers: userIDs, Payload: msgBytes})
	if err := h.Redis.Publish(h.ctx, notificationChannel, payload).Err(); err != nil {
		logger.Log.Warn("Notification publish failed, delivering locally", zap.Error(err))
		h.pushToLocalRawUsers(userIDs, msgBytes)
	}
}

func (h *NotificationHub) pushToLocalRawUsers(userIDs []uint, payload []byte) {
	for _, id := range userIDs {
		s := h.getShard(id)
		s.mu.RLock()
		for client := range s.clients[id] {
			select {
			case client.Send <- payload:
			default:
			}
		}
		s.mu.RUnlock()
	}
}

// LocalClientCount 当前实例上某用户的连接数
func (h *NotificationHub) LocalClientCount(userID uint) int {
	s := h.getShard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[userID])
}

func ServeWs(hub *NotificationHub, w http.ResponseWriter, r *http.Request, userID uint) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err), zap.Uint("userId", userID))
		return
	}
	client := &Client{
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, 64),
		UserID:  userID,
		Limiter: rate.NewLimiter(hub.ClientRate, hub.ClientBurst),
	}
	select {
	case hub.register <- client:
	case <-hub.quit:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
