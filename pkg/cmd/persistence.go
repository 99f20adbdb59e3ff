package cmd

import (
	"strings"

	"github.com/zapllo/zaptick-sub010/pkg/persistence"
	"github.com/zapllo/zaptick-sub010/pkg/persistence/file"
	"github.com/zapllo/zaptick-sub010/pkg/persistence/memory"
)

// NewPersistence builds a persistence backend from a URL. "file://<dir>"
// stores JSON documents under <dir>; "memory://" keeps everything
// in-process and is lost on restart.
func NewPersistence(databaseURL string) persistence.Persistence {
	provider, rest := parsePersistenceURL(databaseURL)

	switch provider {
	case "memory":
		return memory.NewPersistence()
	default:
		return file.NewPersistence(rest)
	}
}

func parsePersistenceURL(databaseURL string) (provider, rest string) {
	parts := strings.SplitN(databaseURL, "://", 2)
	if len(parts) != 2 {
		return "file", databaseURL
	}

	switch parts[0] {
	case "file", "memory":
		return parts[0], parts[1]
	default:
		return "file", databaseURL
	}
}
