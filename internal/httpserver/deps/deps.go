package deps

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MrSnakeDoc/serverlist/internal/command"
	"github.com/MrSnakeDoc/serverlist/internal/logger"
	"github.com/MrSnakeDoc/serverlist/internal/perms"
	"github.com/MrSnakeDoc/serverlist/internal/registry"
)

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	AllowedHosts []string // Host headers allowed to access the server
	AllowedCIDRS []string // IPs allowed to access the server
	TrustProxy   bool     // true if running behind a trusted reverse proxy
	RateBurst    int      // POST /servers bucket size
	RatePerMin   int      // POST /servers refill rate

	Backend     string                          // "file" | "redis"
	Ping        func(ctx context.Context) error // backend health, nil = always healthy
	Registry    *registry.Registry
	Command     *command.Servers
	Perms       *perms.Enforcer
	Gatherer    prometheus.Gatherer
	PollTrigger chan struct{} // manual status poll, nil if the poller is disabled
}
