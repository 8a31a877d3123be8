package domain

import "time"

// MonitorState is the lifecycle state of one monitoring session.
type MonitorState int

const (
	StateStarting MonitorState = iota
	StateSampling
	StateHealing
	StateStopped
)

func (s MonitorState) String() string {
	switch s {
	case StateStarting:
		return "Starting"
	case StateSampling:
		return "Sampling"
	case StateHealing:
		return "Healing"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Source names what a monitor session watches. Identifier is empty for
// local-file sources, which have no address to re-resolve.
type Source struct {
	Identifier StreamIdentifier
	Address    MediaAddress
	Label      string
}

// Resolvable reports whether a healing attempt can ask for a fresh address.
func (s Source) Resolvable() bool {
	return s.Identifier != ""
}

// MonitorSession is the aggregate runtime state of one monitored feed. It is
// owned exclusively by the monitor loop and never shared across goroutines.
type MonitorSession struct {
	Source        Source
	State         MonitorState
	FailureStreak int
	LastSample    time.Time
	Interval      time.Duration
	StartedAt     time.Time
}

// Status is the structured overlay pushed to the rendering sink.
type Status struct {
	Label     string       `json:"label"`
	Monitor   string       `json:"monitor"`
	Healthy   bool         `json:"healthy"`
	State     MonitorState `json:"state"`
	Streak    int          `json:"streak"`
	Timestamp time.Time    `json:"timestamp"`
}

// Command is a discrete operator input. Only CommandQuit affects the
// monitor state machine; the playback-mode commands drive the local-file
// player.
type Command int

const (
	CommandQuit Command = iota
	CommandPause
	CommandResume
	CommandStepForward
	CommandStepBackward
	CommandReset
	CommandSaveFrame
	CommandIncreaseInterval
	CommandDecreaseInterval
)

func (c Command) String() string {
	switch c {
	case CommandQuit:
		return "quit"
	case CommandPause:
		return "pause"
	case CommandResume:
		return "resume"
	case CommandStepForward:
		return "step_forward"
	case CommandStepBackward:
		return "step_backward"
	case CommandReset:
		return "reset"
	case CommandSaveFrame:
		return "save_frame"
	case CommandIncreaseInterval:
		return "increase_interval"
	case CommandDecreaseInterval:
		return "decrease_interval"
	default:
		return "unknown"
	}
}
