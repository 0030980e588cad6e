package registry

import (
	"context"
	"encoding/json"
	"testing"

	rediscache "github.com/growtharena/edge/cache/redis"
	"github.com/growtharena/edge/logger"
	"github.com/growtharena/edge/mq"
	"github.com/growtharena/edge/tenancy"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestWarmer(t *testing.T) (*Warmer, *Store, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := newTestStore(t)
	cache := rediscache.NewClientWith(rdb, logger.NewNop())
	return NewWarmer(store, cache, logger.NewNop()), store, server
}

func consume(t *testing.T, w *Warmer, evt Event) {
	t.Helper()
	body, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	result, err := w.Handle(context.Background(), []*mq.ConsumedMessage{{
		Topic: TopicTenantConfigChanged,
		Body:  body,
		Key:   evt.OrgID,
	}})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result != mq.ConsumeSuccess {
		t.Fatalf("result = %v, want success", result)
	}
}

func TestWarmerUpsertWritesBothKeys(t *testing.T) {
	w, store, server := newTestWarmer(t)

	org := seedOrg(t, store, "acme")
	org.CustomDomain = "coach.example.com"
	org.CustomDomainVerified = true
	if err := store.Update(context.Background(), org); err != nil {
		t.Fatalf("update: %v", err)
	}

	consume(t, w, Event{
		EventID:      "1",
		Op:           OpUpsert,
		OrgID:        org.ID,
		Subdomain:    "acme",
		CustomDomain: "coach.example.com",
	})

	for _, key := range []string{
		tenancy.SubdomainCacheKey("acme"),
		tenancy.CustomDomainCacheKey("coach.example.com"),
	} {
		raw, err := server.Get(key)
		if err != nil {
			t.Fatalf("missing key %s: %v", key, err)
		}
		var cfg tenancy.TenantConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			t.Fatalf("unmarshal %s: %v", key, err)
		}
		if cfg.OrganizationID != org.ID {
			t.Fatalf("key %s holds org %q, want %q", key, cfg.OrganizationID, org.ID)
		}
	}
}

func TestWarmerUpsertEvictsStaleKeys(t *testing.T) {
	w, store, server := newTestWarmer(t)

	org := seedOrg(t, store, "acme")
	server.Set(tenancy.SubdomainCacheKey("oldname"), "stale")

	consume(t, w, Event{
		EventID:       "2",
		Op:            OpUpsert,
		OrgID:         org.ID,
		Subdomain:     "acme",
		PrevSubdomain: "oldname",
	})

	if server.Exists(tenancy.SubdomainCacheKey("oldname")) {
		t.Fatal("stale subdomain key survived rename")
	}
	if !server.Exists(tenancy.SubdomainCacheKey("acme")) {
		t.Fatal("new subdomain key missing")
	}
}

func TestWarmerUpsertForMissingOrgEvicts(t *testing.T) {
	w, _, server := newTestWarmer(t)
	server.Set(tenancy.SubdomainCacheKey("ghost"), "stale")

	consume(t, w, Event{
		EventID:   "3",
		Op:        OpUpsert,
		OrgID:     "01HZXK3V5T0000000000000000",
		Subdomain: "ghost",
	})

	if server.Exists(tenancy.SubdomainCacheKey("ghost")) {
		t.Fatal("key for deleted org survived")
	}
}

func TestWarmerDeleteEvicts(t *testing.T) {
	w, _, server := newTestWarmer(t)
	server.Set(tenancy.SubdomainCacheKey("acme"), "cfg")
	server.Set(tenancy.CustomDomainCacheKey("coach.example.com"), "cfg")

	consume(t, w, Event{
		EventID:      "4",
		Op:           OpDelete,
		OrgID:        "org_1",
		Subdomain:    "acme",
		CustomDomain: "coach.example.com",
	})

	if server.Exists(tenancy.SubdomainCacheKey("acme")) ||
		server.Exists(tenancy.CustomDomainCacheKey("coach.example.com")) {
		t.Fatal("delete event left cache keys behind")
	}
}

func TestWarmerSkipsMalformedEvent(t *testing.T) {
	w, _, _ := newTestWarmer(t)

	result, err := w.Handle(context.Background(), []*mq.ConsumedMessage{{
		Topic: TopicTenantConfigChanged,
		Body:  []byte("{not json"),
	}})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if result != mq.ConsumeSuccess {
		t.Fatalf("malformed event must not block the partition, got %v", result)
	}
}
