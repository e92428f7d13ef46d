package auth

import "time"

func (a *Auth) SetClock(now func() time.Time) {
	a.now = now
}
