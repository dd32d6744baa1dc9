package regalloc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/havrel-lang/umlc/lang/regalloc"
	"github.com/havrel-lang/umlc/lang/token"
)

func TestOccupyReleaseCycle(t *testing.T) {
	pool := regalloc.New()
	require.Equal(t, 0, pool.Occupied())

	h, derr := pool.Occupy(token.Position{Line: 1})
	require.Nil(t, derr)
	require.Equal(t, 1, pool.Occupied())

	h.Release()
	require.Equal(t, 0, pool.Occupied())
}

func TestOccupyExhaustion(t *testing.T) {
	pool := regalloc.New()
	var handles []*regalloc.Handle
	for i := 0; i < 4; i++ {
		h, derr := pool.Occupy(token.Position{Line: i + 1})
		require.Nil(t, derr)
		handles = append(handles, h)
	}

	_, derr := pool.Occupy(token.Position{Line: 99})
	require.NotNil(t, derr)
	require.Contains(t, derr.Msg, "no scratch register available")
	require.Contains(t, derr.Msg, "outstanding claim")

	for _, h := range handles {
		h.Release()
	}
	require.Equal(t, 0, pool.Occupied())
}

func TestReleaseTwicePanics(t *testing.T) {
	pool := regalloc.New()
	h, _ := pool.Occupy(token.Position{})
	h.Release()
	require.Panics(t, h.Release)
}

func TestDistinctRegistersHandedOut(t *testing.T) {
	pool := regalloc.New()
	seen := make(map[string]bool)
	var handles []*regalloc.Handle
	for i := 0; i < 4; i++ {
		h, derr := pool.Occupy(token.Position{})
		require.Nil(t, derr)
		seen[h.Register().String()] = true
		handles = append(handles, h)
	}
	require.Len(t, seen, 4)
	for _, h := range handles {
		h.Release()
	}
}
