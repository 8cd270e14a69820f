package interval_test

import (
	"testing"

	"github.com/ovis-hpc/maestro/internal/interval"
	"github.com/stretchr/testify/assert"
)

func TestParseMicros(t *testing.T) {
	ast := assert.New(t)

	v, err := interval.ParseMicros("1.5s")
	ast.Nil(err)
	ast.Equal(int64(1_500_000), v)

	v, err = interval.ParseMicros("250ms")
	ast.Nil(err)
	ast.Equal(int64(250_000), v)

	v, err = interval.ParseMicros("2m")
	ast.Nil(err)
	ast.Equal(int64(120_000_000), v)

	v, err = interval.ParseMicros("2")
	ast.Nil(err)
	ast.Equal(int64(2_000_000), v)

	v, err = interval.ParseMicros("10us")
	ast.Nil(err)
	ast.Equal(int64(10), v)

	_, err = interval.ParseMicros("bad")
	ast.NotNil(err)
}

func TestParseMicrosCaseInsensitive(t *testing.T) {
	ast := assert.New(t)
	v, err := interval.ParseMicros("3MS")
	ast.Nil(err)
	ast.Equal(int64(3_000), v)
}
