package auth

import "fmt"

// Identity is the authentication tuple every reconciliation decision is keyed off.
// Known is false until the identity provider has resolved whether anyone is logged in.
type Identity struct {
	Known         bool
	Authenticated bool
	UserID        string
	Email         string
	Token         string
}

// Guest is a resolved, unauthenticated identity
func Guest() Identity {
	return Identity{Known: true}
}

func (i Identity) String() string {
	switch {
	case !i.Known:
		return "unknown"
	case !i.Authenticated:
		return "guest"
	default:
		return fmt.Sprintf("user:%s", i.UserID)
	}
}

type Transition int

const (
	TransitionNone Transition = iota
	// TransitionInitial is the first time the identity becomes known.
	TransitionInitial
	TransitionLogin
	TransitionLogout
	// TransitionSwitch is a change of user while staying authenticated.
	TransitionSwitch
)

func (t Transition) String() string {
	switch t {
	case TransitionInitial:
		return "initial"
	case TransitionLogin:
		return "login"
	case TransitionLogout:
		return "logout"
	case TransitionSwitch:
		return "switch"
	default:
		return "none"
	}
}

// Detect compares the previous and current identity and names the transition.
func Detect(prev, cur Identity) Transition {
	if !cur.Known {
		return TransitionNone
	}
	if !prev.Known {
		return TransitionInitial
	}
	switch {
	case !prev.Authenticated && cur.Authenticated:
		return TransitionLogin
	case prev.Authenticated && !cur.Authenticated:
		return TransitionLogout
	case prev.Authenticated && cur.Authenticated && prev.UserID != cur.UserID:
		return TransitionSwitch
	default:
		return TransitionNone
	}
}
