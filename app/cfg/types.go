package cfg

import "time"

type Cfg struct {
	// Remote content service
	ServerURL string
	BoardID   string
	APIKey    string

	// Cadences
	SyncInterval    time.Duration
	StatusInterval  time.Duration
	CleanupInterval time.Duration

	// Local cache
	StorageDir     string
	RetentionDays  int
	MaxStorageMB   int
	EnforceQuota   bool
	MaxStorageSize int64

	// Push channel
	MQTTBroker   string
	MQTTTopic    string
	MQTTUsername string
	MQTTPassword string

	// Optional sources and local surfaces
	FeedURL      string
	ProfileFile  string
	StatusAddr   string
	StatusAPIKey string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

func (c *Cfg) RetentionMaxAge() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}
