package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParent(t *testing.T) {
	assert.Equal(t, "", Parent("a"))
	assert.Equal(t, "a", Parent("a/b"))
	assert.Equal(t, "a/b", Parent("a/b/c"))
	assert.Equal(t, "", Parent(""))
}

func TestName(t *testing.T) {
	assert.Equal(t, "a", Name("a"))
	assert.Equal(t, "c", Name("a/b/c"))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "b", Join("", "b"))
	assert.Equal(t, "a/b", Join("a", "b"))
}

func TestAncestors(t *testing.T) {
	var got []string
	Ancestors("a/b/c", func(ancestor string) bool {
		got = append(got, ancestor)
		return true
	})
	assert.Equal(t, []string{"a/b", "a", ""}, got)
}

func TestAncestorsStopsEarly(t *testing.T) {
	var got []string
	Ancestors("a/b/c", func(ancestor string) bool {
		got = append(got, ancestor)
		return ancestor != "a"
	})
	assert.Equal(t, []string{"a/b", "a"}, got)
}

func TestIsStrictDescendant(t *testing.T) {
	assert.True(t, IsStrictDescendant("a/b", "a"))
	assert.False(t, IsStrictDescendant("a", "a"))
	assert.True(t, IsStrictDescendant("a", ""))
	assert.False(t, IsStrictDescendant("", ""))
}
