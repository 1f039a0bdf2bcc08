// Package command implements the "servers" command: add, remove and list
// peer server definitions on behalf of a caller.
package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/serverlist/internal/domain"
	"github.com/MrSnakeDoc/serverlist/internal/logger"
	"github.com/MrSnakeDoc/serverlist/internal/perms"
)

const (
	Usage    = "Usage: servers <add|rm|ls> [opts]"
	UsageAdd = "Usage: add <id> <host> [port] [--rcon-port=port] [--rconpw=secret] [--no-motd-task] [--no-query-task] [# comments]"
	UsageRm  = "Usage: rm <id>"

	// DefaultPageSize is the number of servers per ls page.
	DefaultPageSize = 10
)

// Sender is whoever issued the command. Replies go back through SendMessage.
type Sender interface {
	Name() string
	SendMessage(msg string)
}

// PermissionChecker decides whether a caller holds a permission.
type PermissionChecker interface {
	HasPermission(caller, perm string) bool
}

// Store is the part of the registry the command needs.
type Store interface {
	Has(id string) bool
	Snapshot() []domain.NamedServer
	Add(ctx context.Context, id string, srv domain.Server) bool
	Remove(ctx context.Context, id string) bool
}

// Servers dispatches "servers" subcommands. It keeps no state between calls.
type Servers struct {
	store    Store
	perms    PermissionChecker
	logger   logger.Logger
	pageSize int
}

// NewServers creates the command. A pageSize <= 0 uses DefaultPageSize.
func NewServers(store Store, checker PermissionChecker, log logger.Logger, pageSize int) *Servers {
	if log == nil {
		log = logger.NewNop()
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Servers{
		store:    store,
		perms:    checker,
		logger:   log,
		pageSize: pageSize,
	}
}

// Execute runs one invocation. It returns false when args do not name a
// known subcommand; the usage line has then been sent to s.
func (c *Servers) Execute(ctx context.Context, s Sender, args []string) bool {
	if !c.access(s, perms.Servers, true) {
		return true
	}
	if len(args) == 0 {
		s.SendMessage(Usage)
		return false
	}

	sub, rest := strings.ToLower(args[0]), args[1:]
	switch sub {
	case "add":
		if c.access(s, perms.Write, true) {
			c.add(ctx, s, rest)
		}
	case "rm":
		if c.access(s, perms.Write, true) {
			c.rm(ctx, s, rest)
		}
	case "ls", "list":
		if c.access(s, perms.Read, true) {
			c.ls(s, rest)
		}
	default:
		s.SendMessage(Usage)
		return false
	}
	return true
}

func (c *Servers) access(s Sender, perm string, notify bool) bool {
	if c.perms.HasPermission(s.Name(), perm) {
		return true
	}
	if notify {
		s.SendMessage(perms.DeniedMessage)
	}
	return false
}

func (c *Servers) add(ctx context.Context, s Sender, args []string) {
	if len(args) < 2 {
		s.SendMessage(UsageAdd)
		return
	}

	id := args[0]
	if err := domain.ValidateID(id); err != nil {
		s.SendMessage(idMessage(err))
		return
	}
	if c.store.Has(id) {
		s.SendMessage(fmt.Sprintf("%s is an id that is already in use.", id))
		s.SendMessage("Use rm first")
		return
	}

	srv, err := parseServer(args[1], args[2:])
	if err != nil {
		s.SendMessage(err.Error())
		return
	}

	if !c.store.Add(ctx, id, srv) {
		s.SendMessage(fmt.Sprintf("Failed to configure %s", id))
		return
	}
	c.logger.Info("server configured",
		logger.String("id", id),
		logger.String("caller", s.Name()))
	s.SendMessage(fmt.Sprintf("Server id %s configured", id))
}

// optionError is a malformed add option; its text is shown to the caller as is.
type optionError string

func (e optionError) Error() string { return string(e) }

// parseServer reads the optional arguments that follow <host>.
func parseServer(host string, opts []string) (domain.Server, error) {
	srv := domain.NewServer(host)

	for i := 0; i < len(opts); i++ {
		opt := opts[i]
		switch {
		case isInteger(opt):
			port, err := parsePort(opt)
			if err != nil {
				return srv, optionError(fmt.Sprintf("Invalid port %s", opt))
			}
			srv.Port = port
		case strings.HasPrefix(opt, "--rcon-port="):
			v := strings.TrimPrefix(opt, "--rcon-port=")
			port, err := parsePort(v)
			if err != nil {
				return srv, optionError(fmt.Sprintf("Invalid rcon port %s", v))
			}
			srv.RconPort = port
		case strings.HasPrefix(opt, "--rconpw="):
			srv.RconPassword = strings.TrimPrefix(opt, "--rconpw=")
		case opt == "--no-motd-task":
			srv.MotdTask = false
		case opt == "--no-query-task":
			srv.QueryTask = false
		case strings.HasPrefix(opt, "#"):
			comment := strings.Join(opts[i:], " ")
			srv.Comment = strings.TrimSpace(strings.TrimPrefix(comment, "#"))
			return srv, nil
		default:
			return srv, optionError(fmt.Sprintf("Unknown option %s", opt))
		}
	}
	return srv, nil
}

func (c *Servers) rm(ctx context.Context, s Sender, args []string) {
	if len(args) != 1 {
		s.SendMessage(UsageRm)
		return
	}

	id := args[0]
	if !c.store.Has(id) {
		s.SendMessage(fmt.Sprintf("%s does not exist", id))
		return
	}

	if !c.store.Remove(ctx, id) {
		s.SendMessage(fmt.Sprintf("Unable to delete id %s", id))
		return
	}
	c.logger.Info("server deleted",
		logger.String("id", id),
		logger.String("caller", s.Name()))
	s.SendMessage(fmt.Sprintf("Server id %s deleted", id))
}

func (c *Servers) ls(s Sender, args []string) {
	page, _ := PageNumber(args)

	viewIP := c.access(s, perms.ViewIP, false)
	viewRcon := c.access(s, perms.ViewRcon, false)

	lines := []string{"Server connections"}
	for _, ns := range c.store.Snapshot() {
		lines = append(lines, describe(ns, viewIP, viewRcon))
	}
	Paginate(s, page, c.pageSize, lines)
}

// describe renders one ls line, disclosing only what the caller may see.
func describe(ns domain.NamedServer, viewIP, viewRcon bool) string {
	var b strings.Builder
	b.WriteString(ns.ID)

	sep := ": "
	field := func(v string) {
		b.WriteString(sep)
		b.WriteString(v)
		sep = ", "
	}

	srv := ns.Server
	if viewIP {
		field(fmt.Sprintf("%s:%d", srv.Host, srv.Port))
	}
	if viewRcon {
		if srv.RconPort != 0 {
			field(fmt.Sprintf("rcon-port:%d", srv.RconPort))
		}
		if srv.RconPassword != "" {
			field("rcon-pw:" + srv.RconPassword)
		}
	}
	if srv.Comment != "" {
		field("#:" + srv.Comment)
	}
	return b.String()
}

func idMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrLeadingDash):
		return "Server id can not start with a dash (-)"
	case errors.Is(err, domain.ErrContainComma):
		return "Server id can not contain commas (,)"
	default:
		return "Server id can not be empty"
	}
}

func isInteger(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}
