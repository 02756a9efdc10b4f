package snapshot

import (
	"context"
	"time"

	"github.com/dkeye/Venue/internal/core"
	"github.com/dkeye/Venue/internal/domain"
	"github.com/rs/zerolog/log"
)

const DefaultInterval = 30 * time.Second

// RoomSource lists the rooms to persist.
type RoomSource interface {
	Rooms() []*core.Room
}

// Flusher saves every live room on a fixed interval and once more on shutdown.
type Flusher struct {
	Store    Store
	Rooms    RoomSource
	Interval time.Duration
	OnSave   func(err error)
}

func (f *Flusher) Run(ctx context.Context) error {
	interval := f.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			f.Flush(final)
			cancel()
			return nil
		case <-ticker.C:
			f.Flush(ctx)
		}
	}
}

// Flush saves each room once and returns how many records were written.
func (f *Flusher) Flush(ctx context.Context) int {
	saved := 0
	for _, room := range f.Rooms.Rooms() {
		if f.Save(ctx, room) == nil {
			saved++
		}
	}
	if saved > 0 {
		log.Debug().Str("module", "snapshot").Int("rooms", saved).Msg("flushed")
	}
	return saved
}

// Save writes one room.
func (f *Flusher) Save(ctx context.Context, room *core.Room) error {
	st, err := room.State()
	if err != nil {
		log.Warn().Err(err).Str("module", "snapshot").Str("room", string(room.Name())).Msg("room state unavailable")
		return err
	}
	err = f.Store.Save(ctx, FromState(st))
	if f.OnSave != nil {
		f.OnSave(err)
	}
	if err != nil {
		log.Error().Err(err).Str("module", "snapshot").Str("room", string(room.Name())).Msg("save failed")
	}
	return err
}

// Restorer returns a room creation hook that reapplies persisted settings.
func Restorer(store Store, timeout time.Duration) func(*core.Room) {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(room *core.Room) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		rec, ok, err := store.Load(ctx, room.Name())
		if err != nil {
			log.Warn().Err(err).Str("module", "snapshot").Str("room", string(room.Name())).Msg("restore failed")
			return
		}
		if !ok || rec.Settings == (domain.RoomSettings{}) {
			return
		}
		room.RestoreSettings(rec.Settings)
		log.Info().Str("module", "snapshot").Str("room", string(room.Name())).
			Str("background", rec.Settings.Background).Float64("brightness", rec.Settings.Brightness).Msg("settings restored")
	}
}
