package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLedger_Admit(t *testing.T) {
	t.Run("Admitted Until Expiry", func(t *testing.T) {
		l := New(50 * time.Millisecond)
		l.Admit(999)

		assert.True(t, l.IsAdmitted(999))
		assert.Equal(t, []int64{999}, l.IDs())

		assert.Eventually(t, func() bool { return !l.IsAdmitted(999) }, time.Second, 10*time.Millisecond)
		assert.Empty(t, l.IDs())
	})

	t.Run("Zero ID Is Ignored", func(t *testing.T) {
		l := New(time.Second)
		l.Admit(0)
		assert.Equal(t, 0, l.Len())
	})

	t.Run("Release Drops Entry", func(t *testing.T) {
		l := New(time.Minute)
		l.Admit(1)
		l.Admit(2)
		l.Release(1)

		assert.False(t, l.IsAdmitted(1))
		assert.True(t, l.IsAdmitted(2))
		assert.Equal(t, 1, l.Len())
	})

	t.Run("Expired Entries Are Swept On Admit", func(t *testing.T) {
		l := New(20 * time.Millisecond)
		l.Admit(1)
		time.Sleep(40 * time.Millisecond)

		assert.Equal(t, 0, l.Len())
		assert.Equal(t, 1, l.entries.ItemCount(), "nothing sweeps in the background")
		l.Admit(2)
		assert.Equal(t, 1, l.entries.ItemCount())
		assert.Equal(t, []int64{2}, l.IDs())
	})

	t.Run("Default TTL", func(t *testing.T) {
		assert.Equal(t, DefaultTTL, New(0).TTL())
	})
}
