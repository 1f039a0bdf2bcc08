package domain

import (
	"errors"
	"strings"
)

// DefaultPort is the default Bedrock server port.
const DefaultPort = 19132

// Attribute names, as they appear in persisted records.
const (
	AttrHost      = "host"
	AttrPort      = "port"
	AttrRconPort  = "rcon-port"
	AttrRconPass  = "rcon-pw"
	AttrMotdTask  = "motd-task"
	AttrQueryTask = "query-task"
	AttrComment   = "#"
)

var (
	ErrEmptyID      = errors.New("server id can not be empty")
	ErrLeadingDash  = errors.New("server id can not start with a dash (-)")
	ErrContainComma = errors.New("server id can not contain commas (,)")
)

// Server describes one peer server connection.
//
// The zero values of RconPort and RconPassword mean "not configured".
type Server struct {
	Host         string
	Port         int
	RconPort     int
	RconPassword string

	// MotdTask and QueryTask enable the periodic status probes.
	MotdTask  bool
	QueryTask bool

	Comment string
}

// NewServer returns a definition for host with every default applied.
func NewServer(host string) Server {
	return Server{
		Host:      host,
		Port:      DefaultPort,
		MotdTask:  true,
		QueryTask: true,
	}
}

// HasRcon reports whether both rcon settings are present.
func (s Server) HasRcon() bool {
	return s.RconPort != 0 && s.RconPassword != ""
}

// Attr looks up an attribute by its persisted name.
// Unset optional attributes report false.
func (s Server) Attr(name string) (any, bool) {
	switch name {
	case AttrHost:
		return s.Host, s.Host != ""
	case AttrPort:
		return s.Port, true
	case AttrRconPort:
		return s.RconPort, s.RconPort != 0
	case AttrRconPass:
		return s.RconPassword, s.RconPassword != ""
	case AttrMotdTask:
		return s.MotdTask, true
	case AttrQueryTask:
		return s.QueryTask, true
	case AttrComment:
		return s.Comment, s.Comment != ""
	default:
		return nil, false
	}
}

// ValidateID checks that id can be used as a registry key.
func ValidateID(id string) error {
	switch {
	case id == "":
		return ErrEmptyID
	case strings.HasPrefix(id, "-"):
		return ErrLeadingDash
	case strings.Contains(id, ","):
		return ErrContainComma
	}
	return nil
}
