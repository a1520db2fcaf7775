package di

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter struct{ name string }

func TestResolve(t *testing.T) {
	c := NewContainer()
	c.Register("greeter", &greeter{name: "scribe"})
	c.Register("count", 3)

	g, err := Resolve[*greeter](c, "greeter")
	require.NoError(t, err)
	assert.Equal(t, "scribe", g.name)

	_, err = Resolve[*greeter](c, "count")
	assert.ErrorContains(t, err, "类型不匹配")

	_, err = Resolve[*greeter](c, "missing")
	assert.ErrorContains(t, err, "未注册")
}

func TestContainerNames(t *testing.T) {
	c := NewContainer()
	c.Register("b", 1)
	c.Register("a", 2)
	assert.Equal(t, []string{"a", "b"}, c.GetNames())
	assert.True(t, c.Has("a"))

	c.Clear()
	assert.False(t, c.Has("a"))
	assert.Nil(t, c.Get("a"))
}
