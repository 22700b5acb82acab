package cache_test

import (
	"fmt"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/dasha/internal/adapters/cache"
)

func TestInMemoryCache(t *testing.T) {
	Convey("Given a new cache", t, func() {
		Convey("When created with default options", func() {
			c := cache.NewInMemory[int]()

			Convey("Then it is empty with the default capacity", func() {
				So(c.Len(), ShouldEqual, int64(0))
				So(c.Stats().Capacity, ShouldEqual, 1024)
			})
		})

		Convey("When values are added and read back", func() {
			c := cache.NewInMemory[string](cache.WithMaxSize(4))
			c.Add("a", "alpha")
			c.Add("b", "beta")

			v, ok := c.Get("a")
			_, missing := c.Get("z")

			Convey("Then hits and misses are counted", func() {
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, "alpha")
				So(missing, ShouldBeFalse)
				st := c.Stats()
				So(st.Hits, ShouldEqual, int64(1))
				So(st.Misses, ShouldEqual, int64(1))
				So(st.Size, ShouldEqual, int64(2))
			})
		})

		Convey("When a key is added twice", func() {
			c := cache.NewInMemory[int](cache.WithMaxSize(4))
			c.Add("k", 1)
			c.Add("k", 2)
			v, _ := c.Get("k")

			Convey("Then the value is replaced in place", func() {
				So(v, ShouldEqual, 2)
				So(c.Len(), ShouldEqual, int64(1))
			})
		})

		Convey("When the cache overflows", func() {
			c := cache.NewInMemory[int](cache.WithMaxSize(3))
			c.Add("a", 1)
			c.Add("b", 2)
			c.Add("c", 3)
			c.Get("a")
			c.Add("d", 4)

			Convey("Then the least recently used entry is evicted", func() {
				_, okA := c.Get("a")
				_, okB := c.Get("b")
				_, okD := c.Get("d")
				So(okA, ShouldBeTrue)
				So(okB, ShouldBeFalse)
				So(okD, ShouldBeTrue)
				So(c.Len(), ShouldEqual, int64(3))
				So(c.Stats().Evictions, ShouldEqual, int64(1))
			})
		})

		Convey("When an entry is removed", func() {
			c := cache.NewInMemory[int](cache.WithMaxSize(3))
			c.Add("a", 1)
			c.Remove("a")
			c.Remove("never")

			So(c.Len(), ShouldEqual, int64(0))
			_, ok := c.Get("a")
			So(ok, ShouldBeFalse)
		})

		Convey("When the cache is disabled", func() {
			c := cache.NewInMemory[int](cache.WithMaxSize(0))
			c.Add("a", 1)
			_, ok := c.Get("a")

			Convey("Then nothing is stored", func() {
				So(ok, ShouldBeFalse)
				So(c.Len(), ShouldEqual, int64(0))
			})
		})
	})
}

func TestInMemoryCacheConcurrency(t *testing.T) {
	Convey("Given a cache shared by many goroutines", t, func() {
		c := cache.NewInMemory[int](cache.WithMaxSize(50))
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					key := fmt.Sprintf("k-%d", (g*200+i)%120)
					c.Add(key, i)
					c.Get(key)
				}
			}()
		}
		wg.Wait()

		Convey("Then the bound holds", func() {
			So(c.Len(), ShouldBeLessThanOrEqualTo, int64(50))
			st := c.Stats()
			So(st.Hits+st.Misses, ShouldEqual, int64(8*200))
		})
	})
}
