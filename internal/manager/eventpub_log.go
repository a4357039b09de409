package manager

import "github.com/rs/zerolog"

// LogPublisher writes events to a zerolog logger.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(l zerolog.Logger) *LogPublisher { return &LogPublisher{log: l} }

func (p *LogPublisher) Publish(e Event) {
	lvl := zerolog.InfoLevel
	switch e.Name {
	case EventLoadError, EventUnloadTimeout:
		lvl = zerolog.WarnLevel
	case EventRejected:
		lvl = zerolog.DebugLevel
	}
	p.log.WithLevel(lvl).Str("event", e.Name).Str("model", e.ModelID).Fields(e.Fields).Msg("manager event")
}
