package escrow

import (
	"testing"

	"github.com/goliatone/go-logger/glog"
	"github.com/stretchr/testify/assert"
)

var _ Logger = (glog.Logger)(nil)

func TestLineFormatsKeyValues(t *testing.T) {
	assert.Equal(t, "transition escrow_id=e-1 to=completed\n",
		line("transition", "escrow_id", "e-1", "to", StatusCompleted))
	assert.Equal(t, "dangling key\n", line("dangling", "key"))
	assert.Equal(t, "plain\n", line("plain"))
}
