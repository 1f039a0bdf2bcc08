package domain

// Record is the persisted form of a Server.
//
// Task flags are stored only when disabled so that records written by hand
// (or by older versions) default to enabled.
type Record struct {
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port,omitempty" yaml:"port,omitempty"`
	RconPort     int    `json:"rcon-port,omitempty" yaml:"rcon-port,omitempty"`
	RconPassword string `json:"rcon-pw,omitempty" yaml:"rcon-pw,omitempty"`
	MotdTask     *bool  `json:"motd-task,omitempty" yaml:"motd-task,omitempty"`
	QueryTask    *bool  `json:"query-task,omitempty" yaml:"query-task,omitempty"`
	Comment      string `json:"#,omitempty" yaml:"#,omitempty"`
}

// NamedServer pairs a server with its registry id.
type NamedServer struct {
	ID     string
	Server Server
}

// ToRecord converts s to its persisted form.
func ToRecord(s Server) Record {
	r := Record{
		Host:         s.Host,
		Port:         s.Port,
		RconPort:     s.RconPort,
		RconPassword: s.RconPassword,
		Comment:      s.Comment,
	}
	if !s.MotdTask {
		r.MotdTask = boolPtr(false)
	}
	if !s.QueryTask {
		r.QueryTask = boolPtr(false)
	}
	return r
}

// Server converts a persisted record back, applying defaults for missing fields.
func (r Record) Server() Server {
	s := NewServer(r.Host)
	if r.Port != 0 {
		s.Port = r.Port
	}
	s.RconPort = r.RconPort
	s.RconPassword = r.RconPassword
	s.Comment = r.Comment
	if r.MotdTask != nil {
		s.MotdTask = *r.MotdTask
	}
	if r.QueryTask != nil {
		s.QueryTask = *r.QueryTask
	}
	return s
}

func boolPtr(b bool) *bool { return &b }
