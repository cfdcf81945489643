package domain

// Theme is the UI color scheme preference.
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

// Settings holds per-user UI preferences.
type Settings struct {
	SidebarExpanded bool  `json:"sidebarExpanded"`
	Theme           Theme `json:"theme"`
}

// DefaultSettings is used for users who never saved preferences.
func DefaultSettings() Settings {
	return Settings{SidebarExpanded: true, Theme: ThemeSystem}
}

func (s Settings) Validate() error {
	switch s.Theme {
	case ThemeSystem, ThemeLight, ThemeDark:
		return nil
	}
	return NewValidationError("Invalid theme")
}
