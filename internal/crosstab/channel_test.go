package crosstab

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ikkim/storefront-sync/internal/app/model"
	"github.com/ikkim/storefront-sync/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	sigs []model.SyncSignal
}

func (r *recorder) handle(_ context.Context, sig model.SyncSignal) {
	r.mu.Lock()
	r.sigs = append(r.sigs, sig)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sigs)
}

func setupTabs(t *testing.T, transport Transport) (*SyncChannel, *SyncChannel, *storage.LocalStore) {
	t.Helper()
	shared := storage.NewMemoryBackend()
	storeA := storage.NewLocalStore(shared, storage.NewMemoryBackend(), nil)
	storeB := storage.NewLocalStore(shared, storage.NewMemoryBackend(), nil)

	a, err := NewSyncChannel(context.Background(), storeA, transport, "tab-a", nil)
	require.NoError(t, err)
	b, err := NewSyncChannel(context.Background(), storeB, transport, "tab-b", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b, storeB
}

func TestSyncChannel_DeliversToOtherTabsOnly(t *testing.T) {
	broker := NewMemoryBroker()
	a, b, _ := setupTabs(t, broker)

	var gotA, gotB recorder
	a.Subscribe(model.KindCart, gotA.handle)
	b.Subscribe(model.KindCart, gotB.handle)

	sig, err := a.Publish(context.Background(), model.KindCart, "update", time.Now())
	require.NoError(t, err)
	broker.Drain()

	assert.Equal(t, 0, gotA.count())
	require.Equal(t, 1, gotB.count())
	assert.Equal(t, sig, gotB.sigs[0])
	assert.Equal(t, "tab-a", gotB.sigs[0].Origin)
}

func TestSyncChannel_FiltersByKind(t *testing.T) {
	broker := NewMemoryBroker()
	a, b, _ := setupTabs(t, broker)

	var got recorder
	b.Subscribe(model.KindWishlist, got.handle)

	_, err := a.Publish(context.Background(), model.KindCart, "update", time.Now())
	require.NoError(t, err)
	broker.Drain()

	assert.Equal(t, 0, got.count())
}

func TestSyncChannel_Unsubscribe(t *testing.T) {
	broker := NewMemoryBroker()
	a, b, _ := setupTabs(t, broker)

	var got recorder
	unsubscribe := b.Subscribe(model.KindCart, got.handle)
	unsubscribe()

	_, err := a.Publish(context.Background(), model.KindCart, "update", time.Now())
	require.NoError(t, err)
	broker.Drain()

	assert.Equal(t, 0, got.count())
}

func TestSyncChannel_PersistsRecordAndIncreasesTimestamps(t *testing.T) {
	broker := NewMemoryBroker()
	a, b, _ := setupTabs(t, broker)
	at := time.UnixMilli(5000)

	first, err := a.Publish(context.Background(), model.KindWishlist, "add", at)
	require.NoError(t, err)
	second, err := a.Publish(context.Background(), model.KindWishlist, "remove", at)
	require.NoError(t, err)

	assert.Equal(t, int64(5000), first.Timestamp)
	assert.Equal(t, int64(5001), second.Timestamp)

	latest, ok := b.Latest(context.Background(), model.KindWishlist)
	require.True(t, ok)
	assert.Equal(t, second, latest)

	_, ok = b.Latest(context.Background(), model.KindCart)
	assert.False(t, ok)
}

func TestWatermark_StrictlyNewer(t *testing.T) {
	var w Watermark

	assert.True(t, w.Advance(10))
	assert.False(t, w.Advance(10))
	assert.False(t, w.Advance(9))
	assert.True(t, w.Advance(11))
	assert.Equal(t, int64(11), w.Last())
}

func TestRedisNotifier_CrossTab(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	a, b, _ := setupTabs(t, NewRedisNotifier(client, "shop", nil))

	var got recorder
	b.Subscribe(model.KindCart, got.handle)
	var self recorder
	a.Subscribe(model.KindCart, self.handle)

	_, err := a.Publish(context.Background(), model.KindCart, "clear", time.Now())
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return got.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, self.count())
}
