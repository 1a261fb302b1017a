package cache

import (
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"
)

func TestResponseCache_GetSet(t *testing.T) {
	c := New(5*time.Second, 100)

	resp := &CachedResponse{StatusCode: http.StatusOK, Body: []byte(`{"data":[]}`)}
	key := MakeKey("Customer", "token a:b", "list_customer", []byte(`{"limit":5}`))
	c.Set(key, resp)

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", got.StatusCode)
	}
	if string(got.Body) != `{"data":[]}` {
		t.Errorf("unexpected body: %s", got.Body)
	}
}

func TestResponseCache_Miss(t *testing.T) {
	c := New(5*time.Second, 100)

	_, ok := c.Get("nonexistent")
	if ok {
		t.Error("expected cache miss for nonexistent key")
	}
}

func TestResponseCache_TTLExpiration(t *testing.T) {
	c := New(50*time.Millisecond, 100)

	key := MakeKey("Item", "", "get_item", []byte(`{"name":"X"}`))
	c.Set(key, &CachedResponse{StatusCode: http.StatusOK, Body: []byte("{}")})

	if _, ok := c.Get(key); !ok {
		t.Fatal("expected cache hit before expiry")
	}

	time.Sleep(60 * time.Millisecond)

	if _, ok := c.Get(key); ok {
		t.Error("expected cache miss after TTL expiration")
	}
}

func TestResponseCache_InvalidateTarget(t *testing.T) {
	c := New(5*time.Second, 100)
	resp := &CachedResponse{StatusCode: http.StatusOK, Body: []byte("{}")}

	customerA := MakeKey("Customer", "token a:1", "list_customer", nil)
	customerB := MakeKey("Customer", "token b:2", "get_customer", []byte(`{"name":"C1"}`))
	group := MakeKey("Customer Group", "token a:1", "list_customer_group", nil)
	item := MakeKey("Item", "token a:1", "list_item", nil)
	for _, k := range []string{customerA, customerB, group, item} {
		c.Set(k, resp)
	}

	if removed := c.InvalidateTarget("Customer"); removed != 2 {
		t.Errorf("expected 2 entries removed, got %d", removed)
	}
	for _, k := range []string{customerA, customerB} {
		if _, ok := c.Get(k); ok {
			t.Error("customer entry should be invalidated for every credential")
		}
	}
	// a type whose name extends another must survive
	if _, ok := c.Get(group); !ok {
		t.Error("Customer Group entry should remain")
	}
	if _, ok := c.Get(item); !ok {
		t.Error("Item entry should remain")
	}
}

func TestResponseCache_EmptyTargetRemovesNothing(t *testing.T) {
	c := New(5*time.Second, 100)
	c.Set(MakeKey("Item", "", "list_item", nil), &CachedResponse{Body: []byte("{}")})
	if removed := c.InvalidateTarget(""); removed != 0 || c.Len() != 1 {
		t.Errorf("empty target removed %d entries", removed)
	}
}

func TestResponseCache_MaxEntries(t *testing.T) {
	c := New(5*time.Second, 3)

	resp := &CachedResponse{StatusCode: http.StatusOK, Body: []byte("{}")}

	c.Set("key1", resp)
	c.Set("key2", resp)
	c.Set("key3", resp)

	for _, k := range []string{"key1", "key2", "key3"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("expected %s to be in cache", k)
		}
	}

	// Adding a 4th should evict the oldest (key1)
	c.Set("key4", resp)

	if _, ok := c.Get("key1"); ok {
		t.Error("expected key1 to be evicted (oldest entry)")
	}
	if _, ok := c.Get("key4"); !ok {
		t.Error("expected key4 to be in cache")
	}
}

func TestResponseCache_DisabledStoresNothing(t *testing.T) {
	for _, c := range []*ResponseCache{New(5*time.Second, 0), New(0, 10)} {
		c.Set("key", &CachedResponse{Body: []byte("{}")})
		if c.Len() != 0 {
			t.Errorf("disabled cache stored %d entries", c.Len())
		}
	}
}

func TestResponseCache_Purge(t *testing.T) {
	c := New(5*time.Second, 10)
	c.Set("a", &CachedResponse{Body: []byte("{}")})
	c.Set("b", &CachedResponse{Body: []byte("{}")})
	c.Purge()
	if c.Len() != 0 {
		t.Errorf("expected empty cache after purge, got %d", c.Len())
	}
}

func TestMakeKey_SeparatesCredentials(t *testing.T) {
	a := MakeKey("Customer", "token a:1", "list_customer", []byte(`{}`))
	b := MakeKey("Customer", "token b:2", "list_customer", []byte(`{}`))
	if a == b {
		t.Error("different credentials must not share a cache key")
	}
	if a != MakeKey("Customer", "token a:1", "list_customer", []byte(`{}`)) {
		t.Error("MakeKey is not deterministic")
	}
}

func TestResponseCache_ThreadSafety(t *testing.T) {
	c := New(5*time.Second, 50)
	resp := &CachedResponse{StatusCode: http.StatusOK, Body: []byte("{}")}

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(3)
		go func(n int) {
			defer wg.Done()
			c.Set(MakeKey("Item", "", "get_item", []byte(fmt.Sprintf(`{"name":"%d"}`, n))), resp)
		}(i)
		go func(n int) {
			defer wg.Done()
			c.Get(MakeKey("Item", "", "get_item", []byte(fmt.Sprintf(`{"name":"%d"}`, n))))
		}(i)
		go func() {
			defer wg.Done()
			c.InvalidateTarget("Item")
		}()
	}
	wg.Wait()

	if c.Len() > 50 {
		t.Errorf("cache exceeded maxEntries: %d", c.Len())
	}
}
