package notify

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/zeebo/assert"
)

func TestFeed(t *testing.T) {
	f := NewFeed(3)
	f.Info("one")
	f.Success("two")
	f.Error("three")
	f.Info("four")

	all := f.All()
	assert.Equal(t, len(all), 3)
	assert.Equal(t, all[0].Message, "two")
	assert.Equal(t, all[2].Level, LevelInfo)
	assert.Equal(t, all[2].ID, uint64(4))

	since := f.Since(3)
	assert.Equal(t, len(since), 1)
	assert.Equal(t, since[0].Message, "four")
}

func TestMultiAndHelpers(t *testing.T) {
	a, b := NewFeed(10), NewFeed(10)
	m := Multi{a, b, Discard{}}
	Successf(m, "swapped %d/%d", 2, 2)
	Errorf(m, "failed %s", "ALPHA")
	Infof(m, "no pending swaps")

	assert.Equal(t, len(a.All()), 3)
	assert.Equal(t, len(b.All()), 3)
	assert.Equal(t, a.All()[0].Message, "swapped 2/2")
	assert.Equal(t, b.All()[1].Level, LevelError)
}

func TestConsole(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	c := NewConsole(&buf)
	c.Success("claimed")
	c.Error("nope")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, len(lines), 2)
	assert.Equal(t, lines[0], "✔ claimed")
	assert.Equal(t, lines[1], "✖ nope")
}
