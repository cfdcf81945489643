package view

// Level is the severity of an alert shown to the user.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Alert is a transient message (toast) for the user.
type Alert struct {
	Level   Level
	Title   string
	Message string
	Link    string
}

// AlertSink receives alerts raised by views.
type AlertSink interface {
	Alert(Alert)
}

// AlertFunc adapts a function to AlertSink.
type AlertFunc func(Alert)

func (f AlertFunc) Alert(a Alert) { f(a) }

type discardAlerts struct{}

func (discardAlerts) Alert(Alert) {}
