package gateway

import (
	"context"
	"strings"
	"sync"
	"time"

	"storefront/internal/pkg/config"

	"github.com/google/uuid"
)

// DemoGateway 无外部依赖的演示网关
// 没有配置真实密钥时启用：创建即视为会话可支付，查询一律返回已支付。
// 会话号带 demo_ 前缀，便于在日志和审计里区分
type DemoGateway struct {
	mu       sync.Mutex
	sessions map[string]*CheckoutSession
}

func NewDemoGateway() *DemoGateway {
	return &DemoGateway{sessions: make(map[string]*CheckoutSession)}
}

func (g *DemoGateway) CreateCheckoutSession(_ context.Context, req *CheckoutRequest) (*CheckoutSession, error) {
	session := &CheckoutSession{
		ID:          "demo_" + uuid.New().String(),
		CheckoutURL: config.GlobalConfig.Gateway.SuccessURL,
		Status:      SessionStatusUnpaid,
	}

	g.mu.Lock()
	g.sessions[session.ID] = session
	g.mu.Unlock()
	return session, nil
}

func (g *DemoGateway) GetSession(_ context.Context, sessionID string) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if s, ok := g.sessions[sessionID]; ok {
		s.Status = SessionStatusPaid
		if s.PaidAt.IsZero() {
			s.PaidAt = time.Now()
		}
		return s, nil
	}

	// 跨进程重启后会话表为空，demo 前缀的会话仍然放行
	if strings.HasPrefix(sessionID, "demo_") {
		return &CheckoutSession{
			ID:     sessionID,
			Status: SessionStatusPaid,
			PaidAt: time.Now(),
		}, nil
	}
	return nil, ErrUnavailable
}

var _ CheckoutGateway = (*DemoGateway)(nil)
