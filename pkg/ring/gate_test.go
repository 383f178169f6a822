package ring

import (
	"testing"
	"time"
)

func TestGateBroadcastWakesAllWatchers(t *testing.T) {
	var g Gate
	a, b := g.Watch(), g.Watch()
	if a != b {
		t.Fatal("watchers between broadcasts should share a channel")
	}

	g.Broadcast()
	for _, ch := range []<-chan struct{}{a, b} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("watcher not woken")
		}
	}

	c := g.Watch()
	select {
	case <-c:
		t.Fatal("watch after broadcast must wait for the next one")
	default:
	}
}

func TestGateBroadcastWithoutWatchers(t *testing.T) {
	var g Gate
	g.Broadcast()
	g.Broadcast()
	if g.ch != nil {
		t.Fatal("broadcast without watchers should not create a channel")
	}
}
