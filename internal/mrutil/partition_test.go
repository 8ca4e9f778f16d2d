package mrutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionIsDeterministic(t *testing.T) {
	for _, key := range []string{"apple", "banana", "cherry", ""} {
		first := Partition(key, 7)
		second := Partition(key, 7)
		assert.Equal(t, first, second)
		assert.GreaterOrEqual(t, first, 0)
		assert.Less(t, first, 7)
	}
}

func TestPartitionSpreadsAcrossBuckets(t *testing.T) {
	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		key := string(rune('a' + i%26))
		seen[Partition(key, 4)] = true
	}
	assert.Greater(t, len(seen), 1, "expected keys to land in more than one partition")
}

func TestLineKey(t *testing.T) {
	assert.Equal(t, "foo", LineKey("foo\tbar"))
	assert.Equal(t, "foo bar", LineKey("foo bar"))
	assert.Equal(t, "", LineKey("\tbar"))
}
