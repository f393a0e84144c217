package peer

import (
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultReconnectDelay is the fixed wait between reconnection attempts.
// There is deliberately no backoff growth and no retry cap: with a handful of
// peers, availability beats thundering-herd protection.
const DefaultReconnectDelay = 3 * time.Second

type Config struct {
	// ServerURL is the hub's base HTTP URL, e.g. http://localhost:8001.
	ServerURL      string
	Logger         *logrus.Logger
	ReconnectDelay time.Duration
}
