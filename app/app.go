package app

import (
	"github.com/sirupsen/logrus"

	"blogspace/attachment"
	"blogspace/auth"
	"blogspace/db"
	"blogspace/events"
	"blogspace/metrics"
)

// App holds the dependencies shared by every request handler.
type App struct {
	Posts    db.PostStore
	Images   attachment.Service
	Verifier auth.Verifier
	Events   events.Publisher
	Metrics  *metrics.Metrics
	Log      *logrus.Logger

	MaxImageBytes int64
}
