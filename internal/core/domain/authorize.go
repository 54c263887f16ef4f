package domain

import "fmt"

// Authorize is the stateless policy gate mapping (actor, action, record) to
// allow or deny. It runs before the lifecycle decision; a denial
// short-circuits the operation and never touches storage.
//
// Rules:
//   - submit, edit, delete, confirm require the NGO role; edit, delete and
//     confirm additionally require ownership of the record.
//   - claim requires the Volunteer role.
//   - exit requires the Volunteer role and being the current claimant.
//   - donors are read-only.
//
// A nil record is only legal for submit.
func Authorize(actor Actor, action Action, req *Request) error {
	switch action {
	case ActionSubmit:
		if actor.Role != RoleNGO {
			return fmt.Errorf("%w: only NGOs may publish requests", ErrForbidden)
		}
		return nil
	case ActionEdit, ActionDelete, ActionConfirm:
		if actor.Role != RoleNGO {
			return fmt.Errorf("%w: %s requires the NGO role", ErrForbidden, action)
		}
		if req.OwnerID != actor.ID {
			return fmt.Errorf("%w: only the owning NGO may %s this request", ErrForbidden, action)
		}
		return nil
	case ActionClaim:
		if actor.Role != RoleVolunteer {
			return fmt.Errorf("%w: only volunteers may claim requests", ErrForbidden)
		}
		return nil
	case ActionExit:
		if actor.Role != RoleVolunteer {
			return fmt.Errorf("%w: only volunteers may exit requests", ErrForbidden)
		}
		if req.ClaimantID != actor.ID {
			return fmt.Errorf("%w: only the current claimant may exit this request", ErrForbidden)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown action %s", ErrForbidden, action)
	}
}
