package internal

import (
	"maps"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestIterSeq2Concat(t *testing.T) {
	assert := assert.New(t)

	a := maps.All(map[string]int{"a": 1})
	b := slices.All([]string{"x", "y"})

	var keys []string
	for k := range IterSeq2Concat(a, maps.All(map[string]int{"b": 2})) {
		keys = append(keys, k)
	}
	assert.Equal([]string{"a", "b"}, keys)

	var values []string
	for _, v := range IterSeq2Concat(b, b) {
		values = append(values, v)
		if len(values) == 3 {
			break
		}
	}
	assert.Equal([]string{"x", "y", "x"}, values)
}

func TestLogger(t *testing.T) {
	assert := assert.New(t)

	assert.NotNil(Logger(nil))

	log := zap.NewExample()
	assert.Same(log, Logger(log))
}
