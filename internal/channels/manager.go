package channels

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/lessonmate/lessonmate/internal/config"
)

// Manager owns the enabled channels and runs them together.
type Manager struct {
	channels []Channel
}

// NewManager initialises every channel enabled in the config.
func NewManager(cfg *config.Config, handler TurnHandler) *Manager {
	m := &Manager{}
	if cfg.Channels.Telegram.Enabled {
		m.channels = append(m.channels, NewTelegramChannel(cfg.Channels.Telegram, handler))
		slog.Info("channel enabled", "name", "telegram")
	}
	return m
}

// EnabledChannels returns the names of all enabled channels.
func (m *Manager) EnabledChannels() []string {
	names := make([]string, 0, len(m.channels))
	for _, ch := range m.channels {
		names = append(names, ch.Name())
	}
	return names
}

// StartAll runs every channel until ctx is cancelled or one of them fails.
// It blocks even when no channels are enabled.
func (m *Manager) StartAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return ctx.Err()
	})
	for _, ch := range m.channels {
		g.Go(func() error {
			slog.Info("starting channel", "name", ch.Name())
			if err := ch.Start(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
