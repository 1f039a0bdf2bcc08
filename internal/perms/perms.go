// Package perms answers "may caller use permission X" with a casbin enforcer.
//
// Policies are (subject, permission) pairs; subjects may be grouped into roles.
// The "op" role holds the wildcard permission and the console is always an op.
package perms

import (
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/MrSnakeDoc/serverlist/internal/logger"
)

//go:embed model.conf
var modelConf string

// Permission names used by the servers command.
const (
	Servers  = "serverlist.cmd.servers"
	Read     = Servers + ".read"
	ViewIP   = Read + ".viewip"
	ViewRcon = Read + ".viewrcon"
	Write    = Servers + ".write"
)

const (
	// OpRole is granted every permission.
	OpRole = "op"
	// Console is the subject used for local, trusted callers.
	Console = "CONSOLE"
	// Wildcard matches any permission in a policy.
	Wildcard = "*"

	// DeniedMessage is shown to callers lacking a permission.
	DeniedMessage = "You do not have permission to do that."
)

// Enforcer checks permissions against casbin policies.
type Enforcer struct {
	e      *casbin.Enforcer
	logger logger.Logger
}

// New builds an enforcer. policyFile is an optional casbin CSV policy file;
// without it only the default op grants exist.
func New(policyFile string, log logger.Logger) (*Enforcer, error) {
	m, err := model.NewModelFromString(modelConf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse casbin model: %w", err)
	}

	var e *casbin.Enforcer
	if policyFile != "" {
		e, err = casbin.NewEnforcer(m, fileadapter.NewAdapter(policyFile))
	} else {
		e, err = casbin.NewEnforcer(m)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	enf := &Enforcer{e: e, logger: log}
	if err := enf.Grant(OpRole, Wildcard); err != nil {
		return nil, err
	}
	if err := enf.AddRole(Console, OpRole); err != nil {
		return nil, err
	}

	log.Info("permission enforcer initialized",
		logger.String("policy_file", policyFile))
	return enf, nil
}

// HasPermission reports whether caller holds perm. Errors deny.
func (e *Enforcer) HasPermission(caller, perm string) bool {
	ok, err := e.e.Enforce(caller, perm)
	if err != nil {
		e.logger.Error("permission check failed",
			logger.String("caller", caller),
			logger.String("perm", perm),
			logger.Error(err))
		return false
	}
	return ok
}

// Grant gives perm to subject (a caller or a role).
func (e *Enforcer) Grant(subject, perm string) error {
	if _, err := e.e.AddPolicy(subject, perm); err != nil {
		return fmt.Errorf("failed to grant %s to %s: %w", perm, subject, err)
	}
	return nil
}

// Revoke removes a direct grant.
func (e *Enforcer) Revoke(subject, perm string) error {
	if _, err := e.e.RemovePolicy(subject, perm); err != nil {
		return fmt.Errorf("failed to revoke %s from %s: %w", perm, subject, err)
	}
	return nil
}

// AddRole puts caller into role.
func (e *Enforcer) AddRole(caller, role string) error {
	if _, err := e.e.AddGroupingPolicy(caller, role); err != nil {
		return fmt.Errorf("failed to add %s to role %s: %w", caller, role, err)
	}
	return nil
}
