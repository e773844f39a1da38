package redis

import (
	"errors"
	"testing"

	goredis "github.com/redis/go-redis/v9"
)

func TestNewRequiresClient(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNilClient) {
		t.Fatalf("expected ErrNilClient, got %v", err)
	}
}

func TestCloseLeavesBorrowedClientOpen(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})

	p, err := New(Config{Client: rdb})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Client() != rdb {
		t.Fatalf("Client() should return the configured client")
	}
	if err := p.Close(t.Context()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// still usable by its owner
	if err := rdb.Close(); err != nil {
		t.Fatalf("owner Close: %v", err)
	}
}

func TestCloseOwnedClientTwice(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	p, err := New(Config{Client: rdb, CloseClient: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := range 2 {
		if err := p.Close(t.Context()); err != nil {
			t.Fatalf("Close #%d: %v", i+1, err)
		}
	}
}
