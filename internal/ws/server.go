package ws

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"mesa-table-service/internal/auth"
	"mesa-table-service/internal/billing"
	"mesa-table-service/internal/config"
	"mesa-table-service/internal/orders"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
	Config config.Config

	staffRealtime *staffRealtime
}

func New(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config) *Server {
	srv := &Server{DB: db, Logger: logger, Config: cfg}
	srv.staffRealtime = newStaffRealtime(db, logger, cfg.WSStaffPollInterval)
	return srv
}

type wsRealtimeClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsRealtimeClient) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(value)
}

// staffRealtime pushes the pending order queue and active bill list to every
// connected staff screen of a tenant. Changes are detected by polling the
// newest timestamps; a broadcast only goes out when something moved.
type staffRealtime struct {
	db       *pgxpool.Pool
	logger   *zap.Logger
	interval time.Duration

	started  sync.Once
	mu       sync.RWMutex
	subs     map[string]map[*wsRealtimeClient]struct{}
	lastSeen map[string]time.Time
}

func newStaffRealtime(db *pgxpool.Pool, logger *zap.Logger, interval time.Duration) *staffRealtime {
	return &staffRealtime{
		db:       db,
		logger:   logger,
		interval: interval,
		subs:     make(map[string]map[*wsRealtimeClient]struct{}),
		lastSeen: make(map[string]time.Time),
	}
}

func (sr *staffRealtime) ensureStarted() {
	sr.started.Do(func() {
		go sr.pollLoop(context.Background())
	})
}

func (sr *staffRealtime) subscribe(tenantID string, client *wsRealtimeClient) (unsubscribe func()) {
	key := strings.TrimSpace(tenantID)
	if key == "" {
		return func() {}
	}

	sr.mu.Lock()
	if sr.subs[key] == nil {
		sr.subs[key] = make(map[*wsRealtimeClient]struct{})
	}
	sr.subs[key][client] = struct{}{}
	sr.mu.Unlock()

	return func() {
		sr.mu.Lock()
		clients := sr.subs[key]
		delete(clients, client)
		if len(clients) == 0 {
			delete(sr.subs, key)
			delete(sr.lastSeen, key)
		}
		sr.mu.Unlock()
	}
}

func (sr *staffRealtime) broadcast(tenantID string, message any) {
	key := strings.TrimSpace(tenantID)
	if key == "" {
		return
	}

	sr.mu.RLock()
	clientsMap := sr.subs[key]
	clients := make([]*wsRealtimeClient, 0, len(clientsMap))
	for c := range clientsMap {
		clients = append(clients, c)
	}
	sr.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	for _, c := range clients {
		if err := c.writeJSON(message); err != nil {
			_ = c.conn.Close()
			sr.mu.Lock()
			if current := sr.subs[key]; current != nil {
				delete(current, c)
				if len(current) == 0 {
					delete(sr.subs, key)
					delete(sr.lastSeen, key)
				}
			}
			sr.mu.Unlock()
		}
	}
}

func (sr *staffRealtime) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(sr.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		sr.mu.RLock()
		keys := make([]string, 0, len(sr.subs))
		for key := range sr.subs {
			keys = append(keys, key)
		}
		sr.mu.RUnlock()

		for _, key := range keys {
			tenantID, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				continue
			}

			changedAt := sr.fetchChangedAt(ctx, tenantID)

			sr.mu.RLock()
			seen := sr.lastSeen[key]
			sr.mu.RUnlock()
			if !changedAt.After(seen) {
				continue
			}

			snapshot, fetchErr := sr.fetchSnapshot(ctx, tenantID)
			if fetchErr != nil {
				sr.broadcast(key, map[string]any{"type": "staff.refresh", "updatedAt": changedAt})
				continue
			}

			sr.mu.Lock()
			sr.lastSeen[key] = changedAt
			sr.mu.Unlock()

			sr.broadcast(key, map[string]any{"type": "staff.state", "data": snapshot})
		}
	}
}

func (sr *staffRealtime) fetchChangedAt(ctx context.Context, tenantID int64) time.Time {
	query := `
		select greatest(
			coalesce((select max(created_at) from pending_orders where tenant_id = $1), 'epoch'::timestamptz),
			coalesce((select max(updated_at) from table_bills where tenant_id = $1), 'epoch'::timestamptz),
			coalesce((select max(updated_at) from orders where tenant_id = $1), 'epoch'::timestamptz)
		)
	`
	var changed time.Time
	if err := sr.db.QueryRow(ctx, query, tenantID).Scan(&changed); err != nil {
		return time.Time{}
	}
	return changed
}

type staffSnapshot struct {
	PendingOrders []orders.PendingOrder `json:"pendingOrders"`
	ActiveBills   []billing.TableBill   `json:"activeBills"`
}

func (sr *staffRealtime) fetchSnapshot(ctx context.Context, tenantID int64) (*staffSnapshot, error) {
	snapshot := &staffSnapshot{
		PendingOrders: make([]orders.PendingOrder, 0),
		ActiveBills:   make([]billing.TableBill, 0),
	}

	rows, err := sr.db.Query(ctx, `
		select id, tenant_id, table_number, items, total_amount, created_at
		from pending_orders
		where tenant_id = $1
		order by created_at
	`, tenantID)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var pending orders.PendingOrder
		if err := rows.Scan(&pending.ID, &pending.TenantID, &pending.TableNumber, &pending.Items, &pending.TotalAmount, &pending.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		snapshot.PendingOrders = append(snapshot.PendingOrders, pending)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = sr.db.Query(ctx, `
		select id, tenant_id, table_number, items, subtotal, tax_amount, total_amount, status, created_at, updated_at
		from table_bills
		where tenant_id = $1 and status = $2
		order by table_number
	`, tenantID, billing.StatusActive)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var bill billing.TableBill
		if err := rows.Scan(
			&bill.ID, &bill.TenantID, &bill.TableNumber, &bill.Items,
			&bill.Subtotal, &bill.TaxAmount, &bill.TotalAmount, &bill.Status,
			&bill.CreatedAt, &bill.UpdatedAt,
		); err != nil {
			rows.Close()
			return nil, err
		}
		snapshot.ActiveBills = append(snapshot.ActiveBills, bill)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return snapshot, nil
}

func (s *Server) HandleStaffOrders(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	token := auth.ParseBearerToken(r.URL.Query().Get("token"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	claims, err := auth.VerifyAccessToken(token, s.Config.JWTSecret)
	if err != nil || claims.TenantID == nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}

	tenantID, err := strconv.ParseInt(*claims.TenantID, 10, 64)
	if err != nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}

	s.staffRealtime.ensureStarted()
	ctx := r.Context()
	client := &wsRealtimeClient{conn: conn}
	unsubscribe := s.staffRealtime.subscribe(fmt.Sprint(tenantID), client)
	defer unsubscribe()

	if snapshot, fetchErr := s.staffRealtime.fetchSnapshot(ctx, tenantID); fetchErr == nil {
		_ = client.writeJSON(map[string]any{"type": "staff.state", "data": snapshot})
	} else {
		s.Logger.Warn("staff snapshot fetch failed", zap.Error(fetchErr))
		_ = client.writeJSON(map[string]any{"type": "staff.refresh", "updatedAt": time.Now()})
	}

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	select {
	case <-clientClosed:
		return
	case <-ctx.Done():
		return
	}
}
