package session_test

import (
	"testing"
	"time"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/session"

	"github.com/stretchr/testify/assert"
)

func TestSession_Lifecycle(t *testing.T) {
	s := session.New()
	assert.False(t, s.Authenticated())

	exp := time.Now().Add(time.Hour)
	s.Populate(models.TokenMeta{User: models.User{ID: 1, Username: "admin"}, Token: "abc", ExpiresAt: exp})

	assert.True(t, s.Authenticated())
	assert.Equal(t, "abc", s.Token())
	assert.Equal(t, "admin", s.User().Username)
	assert.Equal(t, exp, s.ExpiresAt())

	s.UpdateToken("def", exp.Add(time.Hour))
	assert.Equal(t, "def", s.Snapshot().Token)
	assert.Equal(t, "admin", s.Snapshot().User.Username)

	s.Clear(session.ReasonLogout)
	assert.False(t, s.Authenticated())
	assert.Empty(t, s.User().Username)
}

func TestSession_Subscribe(t *testing.T) {
	s := session.New()

	var got []string
	unsubA := s.Subscribe(func(ev session.Event) {
		got = append(got, "a")
	})
	unsubB := s.Subscribe(func(ev session.Event) {
		if ev.Kind == session.EventCleared {
			got = append(got, "b:"+string(ev.Reason))
		}
	})

	s.Populate(models.TokenMeta{Token: "t"})
	s.Clear(session.ReasonUnauthorized)
	assert.Equal(t, []string{"a", "a", "b:unauthorized"}, got)

	t.Run("clearing empty session emits nothing", func(t *testing.T) {
		got = nil
		s.Clear(session.ReasonLogout)
		assert.Empty(t, got)
	})

	t.Run("unsubscribe is idempotent and ordered", func(t *testing.T) {
		got = nil
		unsubA()
		unsubA()
		s.Populate(models.TokenMeta{Token: "t"})
		s.Clear(session.ReasonExpired)
		assert.Equal(t, []string{"b:expired"}, got)

		unsubB()
		got = nil
		s.Populate(models.TokenMeta{Token: "t"})
		assert.Empty(t, got)
	})
}
