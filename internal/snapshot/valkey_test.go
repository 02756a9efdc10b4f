package snapshot

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/valkey-io/valkey-go/mock"
	"go.uber.org/mock/gomock"
)

func TestValkeySaveLoad(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	store := NewValkeyStore(client)
	ctx := context.Background()

	rec := sampleRecord()
	var stored string
	client.EXPECT().Do(ctx, mock.MatchFn(func(cmd []string) bool {
		if len(cmd) != 3 || cmd[0] != "SET" || cmd[1] != "venue:room:main" {
			return false
		}
		stored = cmd[2]
		return true
	}, "SET venue:room:main <record>")).Return(mock.Result(mock.ValkeyString("OK")))

	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	var decoded Record
	if err := json.Unmarshal([]byte(stored), &decoded); err != nil {
		t.Fatalf("stored value is not a record: %v", err)
	}

	client.EXPECT().Do(ctx, mock.Match("GET", "venue:room:main")).Return(mock.Result(mock.ValkeyString(stored)))
	got, ok, err := store.Load(ctx, "main")
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if got.Settings != rec.Settings || len(got.Speakers) != 1 {
		t.Fatalf("loaded %+v, want %+v", got, rec)
	}
}

func TestValkeyLoadMissing(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	store := NewValkeyStore(client)
	ctx := context.Background()

	client.EXPECT().Do(ctx, mock.Match("GET", "venue:room:side")).Return(mock.Result(mock.ValkeyNil()))
	if _, ok, err := store.Load(ctx, "side"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
}

func TestValkeyLoadCorrupt(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	store := NewValkeyStore(client)
	ctx := context.Background()

	client.EXPECT().Do(ctx, mock.Match("GET", "venue:room:main")).Return(mock.Result(mock.ValkeyString("{not json")))
	if _, _, err := store.Load(ctx, "main"); err == nil {
		t.Fatalf("want decode error")
	}
}
