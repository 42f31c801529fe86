package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/ikkim/storefront-sync/internal/app/service"
	"github.com/ikkim/storefront-sync/pkg/logger"
	"golang.org/x/time/rate"
)

const (
	// Rate limiting: 최대 메시지 수 (1초당)
	maxMessagesPerSecond = 10

	sendBuffer = 64
)

// UI로 전송하는 이벤트 타입
const (
	EventCart     = "cart"
	EventWishlist = "wishlist"
)

// Event 스냅샷 하나를 담는 이벤트
type Event struct {
	Type  string        `json:"type"`
	State service.State `json:"state"`
	Data  interface{}   `json:"data"`
	Error string        `json:"error,omitempty"`
}

// ClientMessage 클라이언트로부터 받은 메시지 ({"type":"refresh"})
type ClientMessage struct {
	Type string `json:"type"`
}

// Client WebSocket 클라이언트
type Client struct {
	Hub     *Hub
	Conn    *Conn
	ID      string
	Send    chan []byte
	limiter *rate.Limiter
	// Send가 닫혔는지 여부 (Hub.mu로 보호)
	closed bool
}

// NewClient 업그레이드된 연결로 클라이언트 생성
func NewClient(hub *Hub, conn *Conn, id string) *Client {
	return &Client{
		Hub:     hub,
		Conn:    conn,
		ID:      id,
		Send:    make(chan []byte, sendBuffer),
		limiter: rate.NewLimiter(rate.Limit(maxMessagesPerSecond), maxMessagesPerSecond),
	}
}

// Hub WebSocket 연결 관리자 (스냅샷을 모든 UI에 전송)
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	// 클라이언트가 새로고침을 요청하면 호출
	onRefresh func(ctx context.Context) error

	log *logger.Logger
	mu  sync.RWMutex
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan []byte, 256),
		log:        log.Component("websocket"),
	}
}

// Run ctx 종료까지 Hub 실행, 종료 시 모든 클라이언트 정리
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.dropLocked(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("WebSocket client registered", map[string]interface{}{
				"client_id": client.ID,
				"total":     total,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.dropLocked(client)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("WebSocket client unregistered", map[string]interface{}{
				"client_id": client.ID,
				"remaining": total,
			})

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// 느린 클라이언트는 연결 해제
					h.dropLocked(client)
					h.log.Warn("Client send buffer full, disconnecting", map[string]interface{}{
						"client_id": client.ID,
					})
				}
			}
			h.mu.Unlock()
		}
	}
}

// dropLocked 클라이언트 제거 및 큐 닫기 (h.mu 보유 상태에서 호출)
func (h *Hub) dropLocked(client *Client) {
	delete(h.clients, client)
	if !client.closed {
		client.closed = true
		close(client.Send)
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// ClientCount 등록된 클라이언트 수
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish 모든 클라이언트에 이벤트 전송
// 큐가 가득 차면 버림 (다음 스냅샷이 대체함)
func (h *Hub) Publish(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("Failed to marshal event", err, map[string]interface{}{
			"type": ev.Type,
		})
		return err
	}

	select {
	case h.broadcast <- data:
	default:
		h.log.Warn("Broadcast channel full, event dropped", map[string]interface{}{
			"type": ev.Type,
		})
	}
	return nil
}

// Follow 세션 엔진의 변경 사항을 전송
// 반환된 함수로 구독 해제
func (h *Hub) Follow(sess *service.Session) func() {
	h.mu.Lock()
	h.onRefresh = sess.Refresh
	h.mu.Unlock()

	unsubCart := sess.Cart().Subscribe(func(snap service.CartSnapshot) {
		_ = h.Publish(CartEvent(snap))
	})
	unsubWishlist := sess.Wishlist().Subscribe(func(snap service.WishlistSnapshot) {
		_ = h.Publish(WishlistEvent(snap))
	})
	return func() {
		unsubCart()
		unsubWishlist()
	}
}

func CartEvent(snap service.CartSnapshot) Event {
	return Event{Type: EventCart, State: snap.State, Data: snap.Cart, Error: errString(snap.Err)}
}

func WishlistEvent(snap service.WishlistSnapshot) Event {
	return Event{Type: EventWishlist, State: snap.State, Data: snap.Wishlist, Error: errString(snap.Err)}
}

// Greet 해당 클라이언트에만 초기 이벤트 전송
// 이미 제거된 클라이언트는 건너뜀
func (h *Hub) Greet(client *Client, events ...Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if client.closed {
		return
	}
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		select {
		case client.Send <- data:
		default:
		}
	}
}

// HandleClientMessage 클라이언트 메시지 처리
func (h *Hub) HandleClientMessage(ctx context.Context, client *Client, message []byte) {
	if !client.limiter.Allow() {
		h.log.Warn("Rate limit exceeded", map[string]interface{}{
			"client_id": client.ID,
		})
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		h.log.Warn("Failed to parse client message", map[string]interface{}{
			"client_id": client.ID,
			"error":     err.Error(),
		})
		return
	}

	switch msg.Type {
	case "refresh":
		h.mu.RLock()
		refresh := h.onRefresh
		h.mu.RUnlock()
		if refresh == nil {
			return
		}
		if err := refresh(ctx); err != nil {
			h.log.Warn("Refresh requested by client failed", map[string]interface{}{
				"client_id": client.ID,
				"error":     err.Error(),
			})
		}
	case "ping":
	default:
		h.log.Debug("Unknown client message", map[string]interface{}{
			"client_id": client.ID,
			"type":      msg.Type,
		})
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
