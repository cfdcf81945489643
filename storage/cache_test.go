package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

type stubSettings struct {
	fetchFn func(ctx context.Context, userID string) (domain.Settings, error)
	saved   []domain.Settings
}

func (s *stubSettings) FetchSettings(ctx context.Context, userID string) (domain.Settings, error) {
	if s.fetchFn == nil {
		return domain.Settings{}, errors.New("unexpected FetchSettings call")
	}
	return s.fetchFn(ctx, userID)
}

func (s *stubSettings) SaveSettings(_ context.Context, _ string, st domain.Settings) error {
	s.saved = append(s.saved, st)
	return nil
}

type stubMembers struct {
	calls int
	role  domain.Role
	err   error
}

func (s *stubMembers) MemberRole(context.Context, string, string) (domain.Role, error) {
	s.calls++
	return s.role, s.err
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestCacheFetchSettingsMissThenHit(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	var calls int
	cache := NewCache(&stubSettings{fetchFn: func(ctx context.Context, uid string) (domain.Settings, error) {
		calls++
		return domain.Settings{SidebarExpanded: false, Theme: domain.ThemeDark}, nil
	}}, &stubMembers{}, client, time.Minute)

	for i := 0; i < 2; i++ {
		s, err := cache.FetchSettings(ctx, "user-1")
		if err != nil {
			t.Fatalf("fetch settings: %v", err)
		}
		if s.Theme != domain.ThemeDark || s.SidebarExpanded {
			t.Fatalf("unexpected settings: %+v", s)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 backend call, got %d", calls)
	}
	if ttl := mr.TTL(settingsCacheKey("user-1")); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected TTL: %v", ttl)
	}
}

func TestCacheFetchSettingsCorruptEntryFallsBack(t *testing.T) {
	mr, client := newRedis(t)
	if err := mr.Set(settingsCacheKey("user-1"), "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	cache := NewCache(&stubSettings{fetchFn: func(context.Context, string) (domain.Settings, error) {
		return domain.DefaultSettings(), nil
	}}, &stubMembers{}, client, time.Minute)

	s, err := cache.FetchSettings(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("fetch settings: %v", err)
	}
	if s != domain.DefaultSettings() {
		t.Fatalf("expected defaults, got %+v", s)
	}
}

func TestCacheSaveSettingsRefreshesEntry(t *testing.T) {
	_, client := newRedis(t)
	backend := &stubSettings{}
	cache := NewCache(backend, &stubMembers{}, client, time.Minute)
	want := domain.Settings{SidebarExpanded: false, Theme: domain.ThemeLight}
	if err := cache.SaveSettings(context.Background(), "user-1", want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := cache.FetchSettings(context.Background(), "user-1")
	if err != nil || got != want {
		t.Fatalf("expected cached %+v, got %+v (%v)", want, got, err)
	}
	if len(backend.saved) != 1 {
		t.Fatalf("expected one backend save")
	}
}

func TestCacheMemberRoleCachesOnlyMembers(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()
	members := &stubMembers{err: domain.ErrNotFound}
	cache := NewCache(&stubSettings{}, members, client, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cache.MemberRole(ctx, "p1", "u1"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if members.calls != 2 {
		t.Fatalf("negative lookups must not be cached, calls=%d", members.calls)
	}

	members.err, members.role = nil, domain.RoleOwner
	for i := 0; i < 2; i++ {
		role, err := cache.MemberRole(ctx, "p1", "u1")
		if err != nil || role != domain.RoleOwner {
			t.Fatalf("role=%q err=%v", role, err)
		}
	}
	if members.calls != 3 {
		t.Fatalf("expected cached hit, calls=%d", members.calls)
	}
	cache.EvictMember(ctx, "p1", "u1")
	if _, err := cache.MemberRole(ctx, "p1", "u1"); err != nil || members.calls != 4 {
		t.Fatalf("evict did not force a reload, calls=%d err=%v", members.calls, err)
	}
}

func TestCacheWithoutRedisPassesThrough(t *testing.T) {
	members := &stubMembers{role: domain.RoleMember}
	cache := NewCache(&stubSettings{}, members, nil, time.Minute)
	for i := 0; i < 2; i++ {
		if _, err := cache.MemberRole(context.Background(), "p1", "u1"); err != nil {
			t.Fatalf("member role: %v", err)
		}
	}
	if members.calls != 2 {
		t.Fatalf("expected pass-through, calls=%d", members.calls)
	}
}
