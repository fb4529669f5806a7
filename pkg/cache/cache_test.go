package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestKeyDeterministic(t *testing.T) {
	k1 := Key("model-a", "system", "user")
	k2 := Key("model-a", "system", "user")
	if k1 != k2 {
		t.Errorf("identical triples produced different keys: %s vs %s", k1, k2)
	}
	if len(k1) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(k1))
	}
}

func TestKeyDistinctTriples(t *testing.T) {
	triples := [][3]string{
		{"model-a", "system", "user"},
		{"model-b", "system", "user"},
		{"model-a", "system2", "user"},
		{"model-a", "system", "user2"},
		// Order sensitivity: swapping fields must change the key.
		{"system", "model-a", "user"},
		{"model-a", "user", "system"},
		// Separator placement must matter.
		{"model-a\nsystem", "", "user"},
	}

	seen := make(map[string][3]string)
	for _, triple := range triples {
		k := Key(triple[0], triple[1], triple[2])
		if prev, ok := seen[k]; ok {
			t.Errorf("collision between %v and %v", prev, triple)
		}
		seen[k] = triple
	}
}

func TestGetMissingKey(t *testing.T) {
	c := New(time.Hour, 10)
	if _, ok := c.Get("nope"); ok {
		t.Error("Get() returned a value for an unknown key")
	}
}

func TestGetWithinTTL(t *testing.T) {
	c := New(time.Hour, 10)
	c.Set("k", Value{Answer: "hello"})

	for i := 0; i < 2; i++ {
		v, ok := c.Get("k")
		if !ok {
			t.Fatalf("Get() #%d missed a fresh entry", i+1)
		}
		if v.Answer != "hello" {
			t.Errorf("Get() #%d = %q, want %q", i+1, v.Answer, "hello")
		}
	}
}

func TestGetExpiredEntryRemoved(t *testing.T) {
	c := New(time.Hour, 10)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("k", Value{Answer: "hello"})

	c.now = func() time.Time { return now.Add(2 * time.Hour) }
	if _, ok := c.Get("k"); ok {
		t.Error("Get() returned an expired entry")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after lazy expiry, want 0", c.Len())
	}
}

func TestSetOverwriteRefreshesTimestamp(t *testing.T) {
	c := New(time.Hour, 10)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("k", Value{Answer: "v1"})

	c.now = func() time.Time { return now.Add(50 * time.Minute) }
	c.Set("k", Value{Answer: "v2"})

	// 70 minutes after the first write, 20 after the second: still fresh.
	c.now = func() time.Time { return now.Add(70 * time.Minute) }
	v, ok := c.Get("k")
	if !ok {
		t.Fatal("Get() missed a rewritten entry inside its refreshed TTL")
	}
	if v.Answer != "v2" {
		t.Errorf("Get() = %q, want %q", v.Answer, "v2")
	}
}

func TestSetEvictsOldestWrite(t *testing.T) {
	c := New(time.Hour, 2)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("first", Value{Answer: "1"})
	c.now = func() time.Time { return now.Add(time.Minute) }
	c.Set("second", Value{Answer: "2"})

	// Reading "first" repeatedly must not protect it: eviction is by write
	// time, not access time.
	c.Get("first")
	c.Get("first")

	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	c.Set("third", Value{Answer: "3"})

	if c.Len() != 2 {
		t.Fatalf("Len() = %d after over-capacity set, want 2", c.Len())
	}
	if _, ok := c.Get("first"); ok {
		t.Error("oldest-written entry survived eviction")
	}
	if _, ok := c.Get("second"); !ok {
		t.Error("newer entry was evicted")
	}
	if _, ok := c.Get("third"); !ok {
		t.Error("just-written entry was evicted")
	}
}

func TestSetNeverExceedsCapacity(t *testing.T) {
	c := New(time.Hour, 3)
	for i := 0; i < 20; i++ {
		c.Set(fmt.Sprintf("k%d", i), Value{Answer: "x"})
		if c.Len() > 3 {
			t.Fatalf("Len() = %d after set #%d, capacity is 3", c.Len(), i)
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(time.Hour, 8)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", (n+j)%12)
				c.Set(key, Value{Answer: key})
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if c.Len() > 8 {
		t.Errorf("Len() = %d after concurrent writes, capacity is 8", c.Len())
	}
}
