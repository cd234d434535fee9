package certificate

import (
	dErrors "gascert/pkg/domain-errors"
)

// Action enumerates the operations the lifecycle manager gates.
type Action string

const (
	ActionCreate      Action = "create"
	ActionRead        Action = "read"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionSetPending  Action = "set_pending"
	ActionApprove     Action = "approve"
	ActionBulkApprove Action = "bulk_approve"
)

// ownership qualifies what a role may touch for a given action.
type ownership int

const (
	denied ownership = iota
	anyCertificate
	ownCertificate
	approvedOnly
)

// permissions is the single role × action table every operation consults.
// Keeping it in one place avoids re-deriving role conditionals per call site.
var permissions = map[Role]map[Action]ownership{
	RoleAdmin: {
		ActionCreate:      anyCertificate,
		ActionRead:        anyCertificate,
		ActionUpdate:      anyCertificate,
		ActionDelete:      anyCertificate,
		ActionSetPending:  anyCertificate,
		ActionApprove:     anyCertificate,
		ActionBulkApprove: anyCertificate,
	},
	RoleTechnician: {
		ActionCreate:     anyCertificate,
		ActionRead:       ownCertificate,
		ActionUpdate:     ownCertificate,
		ActionDelete:     ownCertificate,
		ActionSetPending: ownCertificate,
	},
	RoleUser: {
		ActionRead: approvedOnly,
	},
}

// Authorize checks the table for actor/action. cert may be nil for actions
// that have no target yet (create, bulk approve).
func Authorize(actor Actor, action Action, cert *Certificate) error {
	switch permissions[actor.Role][action] {
	case anyCertificate:
		return nil
	case ownCertificate:
		if cert == nil || cert.Owner(actor.ID) {
			return nil
		}
	case approvedOnly:
		if cert != nil && cert.Status == StatusApproved {
			return nil
		}
	}
	return dErrors.Newf(dErrors.CodeForbidden, "role %s may not %s this certificate", actor.Role, action)
}
