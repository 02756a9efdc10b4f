package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dkeye/Venue/internal/domain"
	"github.com/valkey-io/valkey-go"
)

const keyPrefix = "venue:room:"

// ValkeyStore keeps one JSON value per room.
type ValkeyStore struct {
	client valkey.Client
}

func OpenValkey(addr, password string) (*ValkeyStore, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("valkey address is required")
	}
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
		Password:    password,
	})
	if err != nil {
		return nil, fmt.Errorf("connect valkey: %w", err)
	}
	return NewValkeyStore(client), nil
}

func NewValkeyStore(client valkey.Client) *ValkeyStore {
	return &ValkeyStore{client: client}
}

func roomKey(room domain.RoomName) string { return keyPrefix + string(room) }

func (s *ValkeyStore) Save(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	cmd := s.client.B().Set().Key(roomKey(rec.Room)).Value(string(b)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("save snapshot %s: %w", rec.Room, err)
	}
	return nil
}

func (s *ValkeyStore) Load(ctx context.Context, room domain.RoomName) (Record, bool, error) {
	b, err := s.client.Do(ctx, s.client.B().Get().Key(roomKey(room)).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("load snapshot %s: %w", room, err)
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode snapshot %s: %w", room, err)
	}
	return rec, true, nil
}

func (s *ValkeyStore) Close() error {
	s.client.Close()
	return nil
}
