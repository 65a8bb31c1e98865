// Package authz is the single place that decides whether a caller may
// perform an operation. Roles resolve once into a typed capability set; the
// rest of the system asks for capabilities, never for roles, so policy
// changes stay local to this package.
package authz

import (
	id "comply/pkg/domain"
	dErrors "comply/pkg/domain-errors"
	"comply/pkg/requestcontext"
)

// Capability is one permission the gate can check.
type Capability string

const (
	// CapSubmit allows moving an artifact you own into review (submission
	// and re-submission). Always owner-gated on top of the capability.
	CapSubmit Capability = "submit"
	// CapCreate allows creating draft artifacts for your own company.
	CapCreate Capability = "create"
	// CapReview allows taking artifacts through review and deciding them.
	CapReview Capability = "review"
	// CapBlock allows parking an artifact in the blocked state.
	CapBlock Capability = "block"
	// CapClearBlock allows releasing a blocked artifact back to submitted.
	CapClearBlock Capability = "clear_block"
	// CapReadAny allows reading artifacts of any company.
	CapReadAny Capability = "read_any"
	// CapReadCompany allows reading artifacts owned by the caller's company.
	CapReadCompany Capability = "read_company"
)

// capabilities maps each role to its capability set, resolved at the gate
// boundary instead of scattering role conditionals through services.
var capabilities = map[id.Role]map[Capability]bool{
	id.RolePartner: {
		CapCreate:      true,
		CapSubmit:      true,
		CapReadCompany: true,
	},
	id.RoleReviewer: {
		CapReview:  true,
		CapReadAny: true,
	},
	id.RoleAdmin: {
		CapCreate:     true,
		CapSubmit:     true,
		CapReview:     true,
		CapBlock:      true,
		CapClearBlock: true,
		CapReadAny:    true,
	},
}

// Resource is the slice of an artifact the gate needs: who owns it and which
// company it belongs to.
type Resource struct {
	OwnerID   id.UserID
	CompanyID id.CompanyID
}

// Gate checks principals against capabilities and company scope.
type Gate struct{}

func NewGate() *Gate {
	return &Gate{}
}

// Authorize returns nil when the principal may exercise the capability
// against the resource. Company-scoped roles are restricted to resources of
// their own company: cross-company access is always denied regardless of
// role grants.
func (g *Gate) Authorize(principal requestcontext.SessionPrincipal, capability Capability, res Resource) error {
	caps, ok := capabilities[principal.Role]
	if !ok {
		return dErrors.New(dErrors.CodeForbidden, "unknown role")
	}

	if companyScoped(principal.Role) && !res.CompanyID.IsNil() && res.CompanyID != principal.CompanyID {
		return dErrors.New(dErrors.CodeForbidden, "artifact belongs to another company")
	}

	switch capability {
	case CapReadAny, CapReadCompany:
		// Reads: either blanket read or company-scoped read of own company.
		if caps[CapReadAny] {
			return nil
		}
		if caps[CapReadCompany] && res.CompanyID == principal.CompanyID {
			return nil
		}
		return dErrors.New(dErrors.CodeForbidden, "not permitted to read this artifact")
	case CapSubmit:
		if !caps[CapSubmit] {
			return dErrors.New(dErrors.CodeForbidden, "role may not submit artifacts")
		}
		// Submission is additionally owner-gated: only the submitting user
		// moves their own artifact.
		if res.OwnerID != principal.UserID {
			return dErrors.New(dErrors.CodeForbidden, "only the owner may submit this artifact")
		}
		return nil
	default:
		if !caps[capability] {
			return dErrors.New(dErrors.CodeForbidden, "role lacks required capability")
		}
		return nil
	}
}

// companyScoped reports whether a role is confined to its own company's
// artifacts. Reviewers and admins operate across companies.
func companyScoped(role id.Role) bool {
	return role == id.RolePartner
}
