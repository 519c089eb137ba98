package main

import (
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDebounce_CollapsesBursts(t *testing.T) {
	in := make(chan fsnotify.Event)
	out := debounce(in, 20*time.Millisecond)

	for i := 0; i < 5; i++ {
		in <- fsnotify.Event{Name: "doc.facet", Op: fsnotify.Write}
	}

	select {
	case _, ok := <-out:
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("debounced notification never arrived")
	}

	// No second notification without further events.
	select {
	case <-out:
		t.Fatal("unexpected extra notification")
	case <-time.After(50 * time.Millisecond):
	}

	close(in)
	_, ok := <-out
	assert.False(t, ok, "channel must close when input closes")
}

func TestDebounce_IgnoresChmodEvents(t *testing.T) {
	in := make(chan fsnotify.Event)
	out := debounce(in, 10*time.Millisecond)

	in <- fsnotify.Event{Name: "doc.facet", Op: fsnotify.Chmod}

	select {
	case <-out:
		t.Fatal("chmod must not trigger a recompile")
	case <-time.After(40 * time.Millisecond):
	}

	close(in)
	_, ok := <-out
	assert.False(t, ok)
}

func TestSiblingJSON(t *testing.T) {
	assert.Equal(t, "doc.json", siblingJSON("doc.facet"))
	assert.Equal(t, "dir/doc.json", siblingJSON("dir/doc.facet"))
	assert.Equal(t, "noext.json", siblingJSON("noext"))
	assert.Equal(t, "a.b/noext.json", siblingJSON("a.b/noext"))
}
