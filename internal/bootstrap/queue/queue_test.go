package queue

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"reviewflow/internal/bootstrap/config"
	"reviewflow/internal/domain/review"
)

func TestOpenRedisPublishesToConfiguredList(t *testing.T) {
	mr := miniredis.RunT(t)

	publisher, closeFn, err := Open(context.Background(), config.QueueConfig{
		Driver:      "redis",
		Name:        "review-pr-queue",
		RedisURL:    "redis://" + mr.Addr(),
		DialTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = closeFn() })

	item := review.WorkItem{TaskID: 3, PRID: 7, Repo: "widgets", Owner: "acme", InstallationID: 42, HeadSHA: "abc", Action: "opened"}
	if err := publisher.Publish(context.Background(), item); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	values, err := mr.List("review-pr-queue")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(values) != 1 {
		t.Fatalf("queue length = %d, want 1", len(values))
	}
	var got review.WorkItem
	if err := json.Unmarshal([]byte(values[0]), &got); err != nil {
		t.Fatalf("decode queued item: %v", err)
	}
	if got != item {
		t.Fatalf("queued item = %+v, want %+v", got, item)
	}
}

func TestOpenRedisToleratesUnreachableBroker(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	publisher, closeFn, err := Open(context.Background(), config.QueueConfig{
		Driver:      "redis",
		Name:        "review-pr-queue",
		RedisURL:    "redis://" + addr,
		DialTimeout: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Open() error = %v, want startup to continue", err)
	}
	t.Cleanup(func() { _ = closeFn() })

	if err := publisher.Publish(context.Background(), review.WorkItem{TaskID: 1}); err == nil {
		t.Fatal("Publish() expected error while broker is down")
	}
}

func TestOpenRejectsBadConfig(t *testing.T) {
	cases := map[string]config.QueueConfig{
		"unsupported queue driver": {Driver: "kafka", Name: "q"},
		"parse redis url":          {Driver: "redis", Name: "q", RedisURL: "http://not-redis"},
	}
	for want, cfg := range cases {
		_, _, err := Open(context.Background(), cfg)
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("Open(%+v) error = %v, want %q", cfg, err, want)
		}
	}
}
