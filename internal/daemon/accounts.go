package daemon

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/matheus3301/chatty/internal/account"
	"github.com/matheus3301/chatty/internal/backend"
	"github.com/matheus3301/chatty/internal/backend/wa"
	"github.com/matheus3301/chatty/internal/bus"
	"github.com/matheus3301/chatty/internal/config"
	"github.com/matheus3301/chatty/internal/identity"
	"github.com/matheus3301/chatty/internal/loop"
	"github.com/matheus3301/chatty/internal/profile"
	"github.com/matheus3301/chatty/internal/store"
)

// SessionFactory creates the backend session of an account. A nil session
// with a nil error means no backend is available for the protocol; the
// account is still registered and keeps its stored chats.
type SessionFactory func(ctx context.Context, id string, p backend.Protocol) (backend.Session, error)

func provideSessionFactory(p Params, b *bus.Bus, logger *zap.Logger) SessionFactory {
	if p.Sessions != nil {
		return p.Sessions
	}
	return func(ctx context.Context, id string, proto backend.Protocol) (backend.Session, error) {
		switch proto {
		case backend.ProtocolWhatsApp:
			return wa.NewAdapter(ctx, id, p.Paths.AccountDB(id), b, logger.Named("wa"))
		default:
			return nil, nil
		}
	}
}

type registryDeps struct {
	Config      *config.Config
	DB          *store.DB
	History     *store.History
	Credentials *store.Credentials
	Matcher     *identity.Matcher
	Sessions    SessionFactory
	Loop        *loop.Loop
	Bus         *bus.Bus
	Logger      *zap.Logger
}

func provideRegistry(cfg *config.Config, db *store.DB, history *store.History, creds *store.Credentials,
	matcher *identity.Matcher, sessions SessionFactory, l *loop.Loop, b *bus.Bus, logger *zap.Logger,
) (*account.Registry, error) {
	return buildRegistry(context.Background(), registryDeps{
		Config:      cfg,
		DB:          db,
		History:     history,
		Credentials: creds,
		Matcher:     matcher,
		Sessions:    sessions,
		Loop:        l,
		Bus:         b,
		Logger:      logger,
	})
}

// buildRegistry creates one account per configured entry. An account that
// was disabled at runtime stays disabled across restarts until re-enabled.
func buildRegistry(ctx context.Context, d registryDeps) (*account.Registry, error) {
	reg := account.NewRegistry(d.Logger.Named("registry"))
	for _, ac := range d.Config.Accounts {
		if err := profile.ValidateAccountID(ac.ID); err != nil {
			return nil, err
		}
		proto, ok := backend.ParseProtocol(ac.Protocol)
		if !ok {
			return nil, fmt.Errorf("account %q: unknown protocol %q", ac.ID, ac.Protocol)
		}

		enabled := ac.IsEnabled()
		stored, err := d.DB.GetAccount(ctx, ac.ID)
		if err != nil {
			return nil, fmt.Errorf("read account %s: %w", ac.ID, err)
		}
		if stored != nil && !stored.Enabled {
			enabled = false
		}
		if err := d.DB.UpsertAccount(ctx, &store.Account{ID: ac.ID, Protocol: uint(proto), Enabled: enabled}); err != nil {
			return nil, fmt.Errorf("record account %s: %w", ac.ID, err)
		}

		session, err := d.Sessions(ctx, ac.ID, proto)
		if err != nil {
			return nil, fmt.Errorf("create %s session for %s: %w", proto, ac.ID, err)
		}
		if session == nil {
			d.Logger.Warn("no backend for protocol, account is offline",
				zap.String("account", ac.ID), zap.Stringer("protocol", proto))
		}

		a := account.New(account.Options{
			ID:                 ac.ID,
			Protocol:           proto,
			Enabled:            enabled,
			Session:            session,
			Store:              d.History,
			Credentials:        d.Credentials,
			Matcher:            d.Matcher,
			Loop:               d.Loop,
			Bus:                d.Bus,
			Logger:             d.Logger,
			SupportsEncryption: ac.SupportsEncryption,
			DeliveryReports:    d.Config.RequestDeliveryReports,
			HistoryPageSize:    d.Config.HistoryPageSize,
		})
		if err := reg.Add(a); err != nil {
			return nil, err
		}
		d.Logger.Info("account registered",
			zap.String("account", ac.ID), zap.Stringer("protocol", proto), zap.Bool("enabled", enabled))
	}
	return reg, nil
}
