package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "postgres://xbee:****@db:5432/mesh", maskDSN("postgres://xbee:secret@db:5432/mesh"))
	assert.Equal(t, "host=db dbname=mesh", maskDSN("host=db dbname=mesh"))
}

func TestCloserReverseOrder(t *testing.T) {
	var order []int
	var c closer
	c.add(func() { order = append(order, 1) })
	c.add(func() { order = append(order, 2) })
	c.add(func() { order = append(order, 3) })
	c.close()
	assert.Equal(t, []int{3, 2, 1}, order)
}
