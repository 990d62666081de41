package daemon

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/matheus3301/chatty/internal/account"
	"github.com/matheus3301/chatty/internal/bus"
	"github.com/matheus3301/chatty/internal/status"
	"github.com/matheus3301/chatty/internal/store"
)

// AccountService returns the health service name that reports an account's
// connectivity: SERVING while connected, NOT_SERVING otherwise.
func AccountService(id string) string {
	return "chatty.account." + id
}

// Monitor follows account events on the bus. It mirrors connectivity into
// the gRPC health service and persists accounts that get disabled.
type Monitor struct {
	bus    *bus.Bus
	health *health.Server
	db     *store.DB
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

func NewMonitor(b *bus.Bus, srv *Server, db *store.DB, logger *zap.Logger) *Monitor {
	return &Monitor{
		bus:    b,
		health: srv.Health(),
		db:     db,
		logger: logger.Named("monitor"),
	}
}

// Start publishes the initial status of every account in reg and begins
// following account events.
func (m *Monitor) Start(ctx context.Context, reg *account.Registry) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	ch, unsub := m.bus.Subscribe(bus.NamespaceAccount, 64)

	for _, a := range reg.Accounts() {
		m.health.SetServingStatus(AccountService(a.ID()), servingStatus(a.Status()))
	}

	go func() {
		defer close(m.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				m.handleEvent(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops following events and waits for pending writes.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

func (m *Monitor) handleEvent(ctx context.Context, evt bus.Event) {
	switch evt.Kind {
	case bus.KindAccountStatusChanged:
		change, ok := evt.Payload.(status.StatusChange)
		if !ok {
			return
		}
		m.logger.Info("account status changed",
			zap.String("account", change.Account),
			zap.String("from", string(change.From)),
			zap.String("to", string(change.To)))
		m.health.SetServingStatus(AccountService(change.Account), servingStatus(change.To))
	case bus.KindAccountDisabled:
		id, ok := evt.Payload.(string)
		if !ok {
			return
		}
		m.health.SetServingStatus(AccountService(id), healthpb.HealthCheckResponse_NOT_SERVING)
		if err := m.db.SetAccountEnabled(ctx, id, false); err != nil {
			m.logger.Error("persist disabled account", zap.String("account", id), zap.Error(err))
			return
		}
		m.logger.Warn("account disabled", zap.String("account", id))
	}
}

func servingStatus(s status.State) healthpb.HealthCheckResponse_ServingStatus {
	if s == status.Connected {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
