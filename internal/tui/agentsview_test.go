package tui

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatList(t *testing.T) {
	langs := []string{"en", "es", "fr", "de", "it", "pt", "ru", "ja", "ko", "zh"}

	assert.Equal(t, "en, es, fr, de, it +5 more", FormatList(langs, 5))
	assert.Equal(t, "a, b", FormatList([]string{"a", "b"}, 3))
	assert.Equal(t, "a, b, c", FormatList([]string{"a", "b", "c"}, 3))
	assert.Equal(t, "a, b, c +1 more", FormatList([]string{"a", "b", "c", "d"}, 3))
	assert.Equal(t, "", FormatList(nil, 3))
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "0m", FormatUptime(59))
	assert.Equal(t, "1h 1m", FormatUptime(3700))
	assert.Equal(t, "1d 1h 0m", FormatUptime(90000))
}

// activateAndWait activates v and applies the first committed snapshot.
func activateAndWait(t *testing.T, v *AgentsView) {
	t.Helper()
	require.NotNil(t, v.Activate())
	msg := waitForSnapshot(v.ctx, v.poller.Updates())()
	require.IsType(t, snapshotMsg{}, msg)
	v.Update(msg)
	require.False(t, v.snap.IsZero())
}

func TestAgentsViewConnecting(t *testing.T) {
	p, _ := newTestPoller()
	v := NewAgentsView(p)
	assert.Contains(t, v.View(), "Connecting to host")
}

func TestAgentsViewRendersCards(t *testing.T) {
	p, _ := newTestPoller()
	v := NewAgentsView(p)
	v.SetWidth(200)
	activateAndWait(t, v)
	defer v.Deactivate()

	view := v.View()
	for _, want := range []string{
		"VITRA_LAG", "GHOST_LAG", "CEO_LAG",
		"en, es, fr, de, it +5 more",
		"llama2, mistral, phi +1 more",
		"transcription, translation",
		"Pending 2", "max 5 concurrent",
		"UP 1h 1m",
	} {
		assert.Contains(t, view, want)
	}
	// CEO_LAG has no queue entry, so one card lacks a health bar.
	assert.Contains(t, view, "Health n/a")
}

func TestAgentsViewDeactivate(t *testing.T) {
	p, _ := newTestPoller()
	v := NewAgentsView(p)
	activateAndWait(t, v)

	v.Deactivate()
	assert.False(t, p.Running())
	assert.False(t, v.Active())
	assert.Nil(t, v.Update(snapshotMsg{Seq: 99}), "snapshots are ignored once inactive")
	assert.Nil(t, v.Update(key("s")), "commands need an active view")

	v.Deactivate()
}

func TestAgentsViewStartUsesCardIndex(t *testing.T) {
	p, host := newTestPoller()
	v := NewAgentsView(p)
	activateAndWait(t, v)
	defer v.Deactivate()

	v.Update(key("right"))
	cmd := v.Update(key("s"))
	require.NotNil(t, cmd)
	assert.Nil(t, v.Update(key("x")), "one action at a time")

	v.Update(cmd())
	assert.Equal(t, []string{"start ghost_lag"}, host.recorded())
	msg, isErr := v.Message()
	assert.False(t, isErr)
	assert.Equal(t, "✓ Start ghost_lag", msg)

	v.Update(key("right"))
	v.Update(v.Update(key("x"))())
	v.Update(v.Update(key("c"))())
	assert.Equal(t, []string{"start ghost_lag", "stop ceo_lag", "clear"}, host.recorded())
}

func TestAgentsViewActionError(t *testing.T) {
	p, host := newTestPoller()
	host.startErr = errors.New("host returned 500")
	v := NewAgentsView(p)
	activateAndWait(t, v)
	defer v.Deactivate()

	before := v.snap.Seq
	v.Update(v.Update(key("s"))())

	msg, isErr := v.Message()
	assert.True(t, isErr)
	assert.Contains(t, msg, "Start vitra_lag failed")
	assert.Equal(t, before, v.snap.Seq, "a failed command does not refresh")
	assert.Contains(t, v.View(), "VITRA_LAG", "cards stay on screen")
}

func TestAgentsViewManualRefresh(t *testing.T) {
	p, _ := newTestPoller()
	v := NewAgentsView(p)
	activateAndWait(t, v)
	defer v.Deactivate()

	before := v.snap.Seq
	v.Update(v.Update(key("r"))())
	assert.Greater(t, v.snap.Seq, before)
}
