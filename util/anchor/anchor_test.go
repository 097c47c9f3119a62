package anchor

import (
	"bytes"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestWindow(t *testing.T) {
	color.NoColor = true
	var (
		out    bytes.Buffer
		window = NewWriter(&out, Red)
	)

	window.Printf("hello %d", 1)
	window.Lot("discover").Printf("searching %s", "queen")
	window.Lot("discover").Close("2 tracks")
	window.AnchorPrintf("failure: %s", "boom")

	assert.Equal(t, "hello 1\ndiscover searching queen\ndiscover 2 tracks\nfailure: boom\n", out.String())
}

func TestLotWipe(t *testing.T) {
	color.NoColor = true
	var (
		out    bytes.Buffer
		window = NewWriter(&out, Red)
	)

	window.Lot("refill").Print("mixed")
	window.Lot("refill").Wipe()
	window.Lot("other").Wipe()
	window.Printf("next")

	assert.Equal(t, "refill mixed\nnext\n", out.String())
}

func TestNew(t *testing.T) {
	defer func(noColor bool) { color.NoColor = noColor }(color.NoColor)

	color.NoColor = false
	window := New(Red)
	assert.Equal(t, os.Stdout, window.out)
	assert.True(t, window.interactive)

	color.NoColor = true
	assert.False(t, New(Red).interactive)
}
