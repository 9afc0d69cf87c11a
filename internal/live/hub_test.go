package live_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/SergeiKhy/clicktrail/internal/live"
	"github.com/SergeiKhy/clicktrail/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu     sync.Mutex
	msgs   [][]byte
	reject bool
}

func (r *recordingObserver) Send(msg []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reject {
		return false
	}
	r.msgs = append(r.msgs, msg)
	return true
}

func (r *recordingObserver) Messages() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.msgs...)
}

var sample = models.LiveEvent{Slug: "abc", IP: "203.0.113.7", ClickType: models.DispositionGood, Timestamp: 1760875200000}

func TestHub_AddDeduplicates(t *testing.T) {
	hub := live.NewHub(nil)
	o := &recordingObserver{}

	assert.True(t, hub.Add(o))
	assert.False(t, hub.Add(o))
	assert.Equal(t, 1, hub.Count())

	hub.Broadcast(sample)
	assert.Len(t, o.Messages(), 1)
}

func TestHub_BroadcastWithoutObservers(t *testing.T) {
	hub := live.NewHub(nil)
	assert.NotPanics(t, func() { hub.Broadcast(sample) })
	assert.Equal(t, 0, hub.Count())
}

func TestHub_BroadcastPayload(t *testing.T) {
	hub := live.NewHub(nil)
	a, b := &recordingObserver{}, &recordingObserver{}
	hub.Add(a)
	hub.Add(b)

	hub.Broadcast(sample)

	for _, o := range []*recordingObserver{a, b} {
		msgs := o.Messages()
		require.Len(t, msgs, 1)
		assert.JSONEq(t, `{"slug":"abc","ip":"203.0.113.7","clickType":"good","timestamp":1760875200000}`, string(msgs[0]))
	}
}

func TestHub_RemovedObserverGetsNothing(t *testing.T) {
	hub := live.NewHub(nil)
	o := &recordingObserver{}
	hub.Add(o)
	hub.Remove(o)
	hub.Remove(o)

	hub.Broadcast(sample)

	assert.Empty(t, o.Messages())
	assert.Equal(t, 0, hub.Count())
}

func TestHub_RejectingObserverDoesNotAffectOthers(t *testing.T) {
	hub := live.NewHub(nil)
	slow := &recordingObserver{reject: true}
	fast := &recordingObserver{}
	hub.Add(slow)
	hub.Add(fast)

	hub.Broadcast(sample)
	hub.Broadcast(sample)

	assert.Len(t, fast.Messages(), 2)
	// отказ в отправке не снимает регистрацию
	assert.Equal(t, 2, hub.Count())
}

func TestHub_ConcurrentAddRemoveBroadcast(t *testing.T) {
	hub := live.NewHub(nil)
	stable := &recordingObserver{}
	hub.Add(stable)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			o := &recordingObserver{}
			hub.Add(o)
			hub.Broadcast(sample)
			hub.Remove(o)
		}()
		go func() {
			defer wg.Done()
			hub.Broadcast(sample)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, hub.Count())
	msgs := stable.Messages()
	assert.Len(t, msgs, 40)
	var ev models.LiveEvent
	require.NoError(t, json.Unmarshal(msgs[0], &ev))
	assert.Equal(t, sample, ev)
}
