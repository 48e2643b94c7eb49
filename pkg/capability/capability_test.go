package capability

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNarrowNeverExpands(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		perms := Permission(rapid.IntRange(0, int(All)).Draw(t, "perms"))
		mask := Permission(rapid.IntRange(0, 0xFF).Draw(t, "mask"))

		c := Capability{Target: NewProcessID(), Perms: perms}
		n := c.Narrow(mask)

		require.True(t, c.Perms.Has(n.Perms) || n.Perms == None,
			"narrowed permissions %v must be a subset of original %v", n.Perms, c.Perms)
	})
}

func TestNarrowIsAssociativeWithIntersection(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		perms := Permission(rapid.IntRange(0, int(All)).Draw(t, "perms"))
		m1 := Permission(rapid.IntRange(0, 0xFF).Draw(t, "m1"))
		m2 := Permission(rapid.IntRange(0, 0xFF).Draw(t, "m2"))

		c := Capability{Target: NewProcessID(), Perms: perms}
		chained := c.Narrow(m1).Narrow(m2)
		direct := c.Narrow(m1.Intersect(m2))

		require.Equal(t, direct, chained)
	})
}

func TestRootGrantsEverything(t *testing.T) {
	id := NewProcessID()
	c := Root(id)
	require.True(t, c.Allows(OpSend))
	require.True(t, c.Allows(OpMonitor))
	require.True(t, c.Allows(OpLink))
	require.True(t, c.Allows(OpKill))
}

func TestNarrowedToSendOnlyDeniesOthers(t *testing.T) {
	c := Root(NewProcessID()).Narrow(Send)
	require.True(t, c.Allows(OpSend))
	require.False(t, c.Allows(OpMonitor))
	require.False(t, c.Allows(OpLink))
	require.False(t, c.Allows(OpKill))

	require.Error(t, c.CheckErr(OpKill))
	var permErr *PermissionError
	require.ErrorAs(t, c.CheckErr(OpKill), &permErr)
}
