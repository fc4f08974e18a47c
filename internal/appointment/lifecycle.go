package appointment

import (
	"fmt"

	"github.com/hackgods/clinic-scheduling/internal/auth"
)

// party is who, relative to an appointment, may trigger a transition.
type party int

const (
	partyPatient party = 1 << iota // the appointment's own patient
	partyProvider                  // the appointment's own provider
	partySystem                    // automated jobs
)

// transitions is the complete lifecycle graph. Anything absent is illegal.
var transitions = map[Status]map[Status]party{
	StatusScheduled: {
		StatusConfirmed: partyProvider,
		StatusCancelled: partyPatient | partyProvider,
		StatusNoShow:    partyProvider | partySystem,
	},
	StatusConfirmed: {
		StatusInProgress: partyProvider,
		StatusCancelled:  partyPatient | partyProvider,
		StatusNoShow:     partyProvider | partySystem,
	},
	StatusInProgress: {
		StatusCompleted: partyProvider,
		StatusCancelled: partyProvider,
	},
}

// Allowed reports whether from -> to is an edge of the lifecycle graph.
func Allowed(from, to Status) bool {
	_, ok := transitions[from][to]
	return ok
}

// CheckTransition validates both the edge and the actor's right to take it.
func CheckTransition(a Appointment, to Status, actor auth.Actor) error {
	allowed, ok := transitions[a.Status][to]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, to)
	}
	if allowed&partyOf(a, actor) == 0 {
		return fmt.Errorf("%w: %s may not move appointment from %s to %s", auth.ErrForbidden, actor.Role, a.Status, to)
	}
	return nil
}

func partyOf(a Appointment, actor auth.Actor) party {
	switch actor.Role {
	case auth.RolePatient:
		if actor.ID == a.PatientID {
			return partyPatient
		}
	case auth.RoleProvider:
		if actor.ID == a.ProviderID {
			return partyProvider
		}
	case auth.RoleSystem:
		return partySystem
	}
	return 0
}

// CanView reports whether the actor may read the appointment.
func CanView(a Appointment, actor auth.Actor) bool {
	switch actor.Role {
	case auth.RoleAdmin, auth.RoleSystem:
		return true
	case auth.RolePatient:
		return actor.ID == a.PatientID
	case auth.RoleProvider:
		return actor.ID == a.ProviderID
	}
	return false
}
