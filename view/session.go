package view

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/LinkDevArch/vess-colaborative-platform/domain"
)

// SettingsStore persists per-user UI settings.
type SettingsStore interface {
	FetchSettings(ctx context.Context) (domain.Settings, error)
	SaveSettings(ctx context.Context, s domain.Settings) error
}

// AppContext is the state shared by every view of one signed-in session.
type AppContext struct {
	mu         sync.Mutex
	user       *domain.Profile
	settings   domain.Settings
	mobileOpen bool
	unread     int

	store  SettingsStore
	logger *log.Logger
}

func NewAppContext(store SettingsStore, logger *log.Logger) *AppContext {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &AppContext{store: store, logger: logger, settings: domain.DefaultSettings()}
}

// Start begins a session for user and loads its persisted settings. A
// settings failure is logged and defaults are kept.
func (a *AppContext) Start(ctx context.Context, user domain.Profile) error {
	a.mu.Lock()
	a.user = &user
	a.settings = domain.DefaultSettings()
	a.mobileOpen = false
	a.unread = 0
	a.mu.Unlock()
	if a.store == nil {
		return nil
	}
	s, err := a.store.FetchSettings(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("load settings failed, using defaults")
		return nil
	}
	a.mu.Lock()
	if a.user != nil && a.user.ID == user.ID {
		a.settings = s
	}
	a.mu.Unlock()
	return nil
}

// End clears all session state.
func (a *AppContext) End() {
	a.mu.Lock()
	a.user = nil
	a.settings = domain.DefaultSettings()
	a.mobileOpen = false
	a.unread = 0
	a.mu.Unlock()
}

// CurrentUser returns the signed-in profile.
func (a *AppContext) CurrentUser() (domain.Profile, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.user == nil {
		return domain.Profile{}, false
	}
	return *a.user, true
}

func (a *AppContext) Settings() domain.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

func (a *AppContext) SidebarExpanded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings.SidebarExpanded
}

// ToggleSidebar flips the sidebar and persists the new value. The local
// value stays flipped even if saving fails.
func (a *AppContext) ToggleSidebar(ctx context.Context) (bool, error) {
	a.mu.Lock()
	a.settings.SidebarExpanded = !a.settings.SidebarExpanded
	s := a.settings
	a.mu.Unlock()
	if a.store == nil {
		return s.SidebarExpanded, nil
	}
	if err := a.store.SaveSettings(ctx, s); err != nil {
		a.logger.WithError(err).Warn("save settings failed")
		return s.SidebarExpanded, err
	}
	return s.SidebarExpanded, nil
}

func (a *AppContext) MobileSidebarOpen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mobileOpen
}

func (a *AppContext) ToggleMobileSidebar() {
	a.mu.Lock()
	a.mobileOpen = !a.mobileOpen
	a.mu.Unlock()
}

func (a *AppContext) CloseMobileSidebar() {
	a.mu.Lock()
	a.mobileOpen = false
	a.mu.Unlock()
}

// Unread is the unread notification count.
func (a *AppContext) Unread() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.unread
}

func (a *AppContext) SetUnread(n int) {
	if n < 0 {
		n = 0
	}
	a.mu.Lock()
	a.unread = n
	a.mu.Unlock()
}

// AddUnread adjusts the unread count, never going below zero.
func (a *AppContext) AddUnread(delta int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unread += delta
	if a.unread < 0 {
		a.unread = 0
	}
	return a.unread
}
