// Package authstate is the observable state container shared by every
// screen. Reading goes through *Store; mutation goes through *Dispatcher,
// which is only handed to the components allowed to change the session.
package authstate

import (
	"time"

	"github.com/mkrupp/portal-session/internal/domain"
)

// State is a snapshot of the container.
type State struct {
	Auth domain.Session
	User domain.UserState

	// Version increases with every transition.
	Version uint64
}

func initialState() State {
	return State{
		User: domain.UserState{Online: true},
	}
}

func clone(s State) State {
	if s.User.Profile != nil {
		profile := *s.User.Profile
		s.User.Profile = &profile
	}

	return s
}

// Transition names used in logs.
const (
	actionLoginStart       = "auth/loginStart"
	actionLoginSuccess     = "auth/loginSuccess"
	actionLoginFailure     = "auth/loginFailure"
	actionRestore          = "auth/restore"
	actionUnlock           = "auth/unlock"
	actionLogout           = "auth/logout"
	actionSaveCredentials  = "auth/saveCredentials"
	actionClearCredentials = "auth/clearCredentials"
	actionSetUser          = "user/setUserData"
	actionClearUser        = "user/clearUserData"
	actionSetOnline        = "user/setOnlineStatus"
	actionUpdateActivity   = "user/updateLastActivity"
	actionTokenInvalidated = "auth/tokenInvalidated"
)

type reducer func(*State)

func loginStart(s *State) {
	s.Auth.IsLoading = true
	s.Auth.Error = ""
}

func loginSuccess(token string) reducer {
	return func(s *State) {
		s.Auth.IsLoading = false
		s.Auth.IsAuthenticated = token != ""
		s.Auth.Token = token
		s.Auth.Error = ""
		s.Auth.Unlocked = true
	}
}

func restore(token string) reducer {
	return func(s *State) {
		s.Auth.IsLoading = false
		s.Auth.IsAuthenticated = token != ""
		s.Auth.Token = token
		s.Auth.Error = ""
		s.Auth.Unlocked = false
	}
}

func loginFailure(message string) reducer {
	return func(s *State) {
		s.Auth.IsLoading = false
		s.Auth.Error = message
	}
}

func tokenInvalidated(s *State) {
	s.Auth.IsAuthenticated = false
	s.Auth.Token = ""
	s.Auth.Unlocked = false
}

func unlock(s *State) {
	s.Auth.Unlocked = s.Auth.IsAuthenticated
}

func logout(s *State) {
	s.Auth = domain.Session{}
	s.User.Profile = nil
}

func saveCredentials(username, password string) reducer {
	return func(s *State) {
		s.Auth.SavedCredentials = domain.SavedCredentials{Username: username, Password: password}
	}
}

func clearCredentials(s *State) {
	s.Auth.SavedCredentials = domain.SavedCredentials{}
}

func setUser(profile *domain.UserProfile) reducer {
	return func(s *State) {
		if profile == nil {
			s.User.Profile = nil

			return
		}

		p := *profile
		s.User.Profile = &p
	}
}

func setOnline(online bool) reducer {
	return func(s *State) {
		s.User.Online = online
	}
}

func updateActivity(at time.Time) reducer {
	return func(s *State) {
		s.User.LastActivity = at
	}
}
