package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	service "github.com/okian/dasha/internal/app"
	"github.com/okian/dasha/internal/adapters/cache"
	"github.com/okian/dasha/internal/adapters/worker"
	"github.com/okian/dasha/internal/config"
	"github.com/okian/dasha/internal/domain/dasha"
	"github.com/okian/dasha/internal/domain/ephemeris"
	"github.com/okian/dasha/pkg/logger"
)

var birth = time.Date(1990, 3, 14, 6, 45, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func newService(opts ...service.Option) *service.Service {
	opts = append([]service.Option{service.WithLogger(logger.Nop())}, opts...)
	svc, err := service.New(opts...)
	So(err, ShouldBeNil)
	return svc
}

func dyad() dasha.Definition {
	return dasha.Definition{
		Name:        "dyad",
		Lords:       []dasha.LordDefinition{{Name: "A", Years: 2}, {Name: "B", Years: 2}},
		CycleYears:  4,
		DaysPerYear: 365.25,
		Spans:       dasha.SpanDefinition{Kind: dasha.SpanUniform, Buckets: 2},
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := newService()

		Convey("Then the built-in systems are registered", func() {
			So(len(svc.Systems()), ShouldEqual, 7)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["defaultSystem"], ShouldEqual, "vimshottari")
		})
	})

	Convey("Given options built from configuration", t, func() {
		cfg := config.New()
		cfg.DefaultSystem = "dyad"
		cfg.Systems = []dasha.Definition{dyad()}
		svc := newService(service.FromConfig(cfg)...)

		Convey("Then configured systems sit next to the built-ins", func() {
			So(len(svc.Systems()), ShouldEqual, 8)
			info, err := svc.System("DYAD")
			So(err, ShouldBeNil)
			So(info.Buckets, ShouldEqual, 2)
			So(len(info.Spans), ShouldEqual, 2)
		})
	})

	Convey("Given a broken system definition", t, func() {
		def := dyad()
		def.CycleYears = 5
		_, err := service.New(service.WithLogger(logger.Nop()), service.WithSystems(def))

		Convey("Then construction fails with a configuration error", func() {
			So(errors.Is(err, dasha.ErrConfiguration), ShouldBeTrue)
		})
	})

	Convey("Given a default system that is not registered", t, func() {
		_, err := service.New(service.WithLogger(logger.Nop()), service.WithDefaultSystem("kalachakra"))

		Convey("Then construction fails with a configuration error", func() {
			So(errors.Is(err, dasha.ErrConfiguration), ShouldBeTrue)
		})
	})
}

func TestService_Cache(t *testing.T) {
	Convey("Given a service with a small cache", t, func() {
		svc := newService(service.WithCacheSize(2))
		ctx := context.Background()
		req := service.Request{At: birth, Longitude: ptr(123.4), Depth: 2, Lookahead: ptr(1)}

		Convey("When the same request is computed twice", func() {
			first, err1 := svc.Compute(ctx, req)
			second, err2 := svc.Compute(ctx, req)
			st := svc.GetStats()["cache"].(cache.Stats)

			Convey("Then the second answer comes from the cache", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(second, ShouldResemble, first)
				So(st.Hits, ShouldEqual, int64(1))
				So(st.Misses, ShouldEqual, int64(1))
				So(svc.GetStats()["timelinesComputed"], ShouldEqual, int64(2))
			})
		})

		Convey("When the same instant is written in another zone", func() {
			ist := time.FixedZone("IST", 5*3600+1800)
			a, _ := svc.Compute(ctx, req)
			b, err := svc.Compute(ctx, service.Request{At: birth.In(ist), Longitude: ptr(123.4), Depth: 2, Lookahead: ptr(1)})

			Convey("Then the reference keeps the caller's zone", func() {
				So(err, ShouldBeNil)
				So(b.Reference.Location(), ShouldEqual, ist)
				So(b.Reference.Equal(a.Reference), ShouldBeTrue)
				So(b.Periods[0].End.Equal(a.Periods[0].End), ShouldBeTrue)
			})
		})
	})

	Convey("Given a service with caching disabled", t, func() {
		svc := newService(service.WithCacheSize(0))
		req := service.Request{At: birth, Longitude: ptr(10.0)}
		_, _ = svc.Compute(context.Background(), req)
		_, _ = svc.Compute(context.Background(), req)

		Convey("Then every call misses", func() {
			st := svc.GetStats()["cache"].(cache.Stats)
			So(st.Hits, ShouldEqual, int64(0))
			So(st.Size, ShouldEqual, int64(0))
		})
	})
}

func TestService_Compute(t *testing.T) {
	Convey("Given a service with a recording tracer", t, func() {
		rec := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
		svc := newService(service.WithTracer(tp.Tracer("test")))
		ctx := context.Background()

		Convey("When a fully specified request is computed", func() {
			tl, err := svc.Compute(ctx, service.Request{
				System: "vimshottari", At: birth, Longitude: ptr(0.0), Depth: 2, Lookahead: ptr(0),
			})

			Convey("Then the timeline reflects the request", func() {
				So(err, ShouldBeNil)
				So(tl.StartLord, ShouldEqual, "Ketu")
				So(tl.Depth, ShouldEqual, 2)
				So(len(tl.Periods), ShouldEqual, 1)
				So(len(tl.Periods[0].Children), ShouldEqual, 9)
			})

			Convey("Then a span carries the computation attributes", func() {
				spans := rec.Ended()
				So(len(spans), ShouldEqual, 1)
				So(spans[0].Name(), ShouldEqual, "dasha.compute")
				attrs := map[attribute.Key]attribute.Value{}
				for _, kv := range spans[0].Attributes() {
					attrs[kv.Key] = kv.Value
				}
				So(attrs["dasha.system"].AsString(), ShouldEqual, "vimshottari")
				So(attrs["dasha.nodes"].AsInt64(), ShouldEqual, int64(10))
			})
		})

		Convey("When defaults are left out", func() {
			tl, err := svc.Compute(ctx, service.Request{At: birth, Longitude: ptr(0.0)})

			Convey("Then the configured defaults apply", func() {
				So(err, ShouldBeNil)
				So(tl.System, ShouldEqual, "vimshottari")
				So(tl.Depth, ShouldEqual, 3)
				So(len(tl.Periods), ShouldEqual, 9)
			})
		})

		Convey("When the longitude is outside [0,360)", func() {
			tl, err := svc.Compute(ctx, service.Request{At: birth, Longitude: ptr(-30.0), Depth: 1, Lookahead: ptr(0)})

			Convey("Then it is normalized first", func() {
				So(err, ShouldBeNil)
				So(tl.Longitude, ShouldEqual, 330.0)
			})
		})

		Convey("When requests are out of range", func() {
			cases := []struct {
				req  service.Request
				kind string
			}{
				{service.Request{At: birth, Longitude: ptr(0.0), Depth: 6}, service.KindInvalidInput},
				{service.Request{At: birth, Longitude: ptr(0.0), Depth: -1}, service.KindInvalidInput},
				{service.Request{At: birth, Longitude: ptr(0.0), Lookahead: ptr(-1)}, service.KindInvalidInput},
				{service.Request{At: birth, Longitude: ptr(0.0), Lookahead: ptr(9)}, service.KindInvalidInput},
				{service.Request{At: birth, Longitude: ptr(0.0), Depth: 5}, service.KindInvalidInput},
				{service.Request{Longitude: ptr(0.0)}, service.KindInvalidInput},
				{service.Request{System: "kalachakra", At: birth, Longitude: ptr(0.0)}, service.KindUnknownSystem},
				{service.Request{At: birth}, service.KindMissingLongitude},
				{service.Request{At: birth, Location: &ephemeris.Location{Latitude: 10}}, service.KindMissingLongitude},
			}

			Convey("Then each is rejected with its kind", func() {
				for _, tc := range cases {
					_, err := svc.Compute(ctx, tc.req)
					So(err, ShouldNotBeNil)
					So(service.ErrorKind(err), ShouldEqual, tc.kind)
				}
				So(svc.GetStats()["timelinesFailed"], ShouldEqual, int64(len(cases)))
			})
		})
	})

	Convey("Given a service with a small node budget", t, func() {
		svc := newService(service.WithMaxNodes(100))

		Convey("Then a tree within the budget is computed", func() {
			tl, err := svc.Compute(context.Background(), service.Request{At: birth, Longitude: ptr(0.0), Depth: 2, Lookahead: ptr(8)})
			So(err, ShouldBeNil)
			So(tl.NodeCount(), ShouldBeLessThanOrEqualTo, 90)
		})

		Convey("Then a deeper tree is refused before any work", func() {
			_, err := svc.Compute(context.Background(), service.Request{At: birth, Longitude: ptr(0.0), Depth: 3, Lookahead: ptr(0)})
			So(errors.Is(err, dasha.ErrInputDomain), ShouldBeTrue)
			So(service.ErrorKind(err), ShouldEqual, service.KindInvalidInput)
		})
	})

	Convey("Given a service with a longitude resolver", t, func() {
		var seen ephemeris.Query
		resolver := ephemeris.ResolverFunc(func(_ context.Context, q ephemeris.Query) (float64, error) {
			seen = q
			if q.Location.Latitude > 80 {
				return 0, errors.New("polar")
			}
			return 370.0, nil
		})
		svc := newService(
			service.WithResolver(resolver),
			service.WithEphemerisSettings(ephemeris.Settings{Path: "/ephe", Mode: "moshier"}),
		)
		loc := &ephemeris.Location{Latitude: 28.6, Longitude: 77.2}

		Convey("When a request gives a location", func() {
			tl, err := svc.Compute(context.Background(), service.Request{At: birth, Location: loc, Depth: 1})

			Convey("Then the resolver answers with the configured settings", func() {
				So(err, ShouldBeNil)
				So(tl.Longitude, ShouldEqual, 10.0)
				So(seen.Body, ShouldEqual, ephemeris.Moon)
				So(seen.Settings.Path, ShouldEqual, "/ephe")
				So(seen.Settings.Mode, ShouldEqual, "moshier")
				So(seen.At, ShouldEqual, birth)
			})
		})

		Convey("When an explicit longitude is given", func() {
			seen = ephemeris.Query{}
			tl, err := svc.Compute(context.Background(), service.Request{At: birth, Location: loc, Longitude: ptr(5.0), Depth: 1})

			Convey("Then the resolver is not consulted", func() {
				So(err, ShouldBeNil)
				So(tl.Longitude, ShouldEqual, 5.0)
				So(seen.At.IsZero(), ShouldBeTrue)
			})
		})

		Convey("When the location is invalid", func() {
			_, err := svc.Compute(context.Background(), service.Request{At: birth, Location: &ephemeris.Location{Latitude: 95}})
			So(errors.Is(err, ephemeris.ErrInvalidQuery), ShouldBeTrue)
		})

		Convey("When the resolver fails", func() {
			_, err := svc.Compute(context.Background(), service.Request{At: birth, Location: &ephemeris.Location{Latitude: 85}})
			So(err, ShouldNotBeNil)
			So(service.ErrorKind(err), ShouldEqual, service.KindInternal)
		})
	})
}

func TestService_ComputeBatch(t *testing.T) {
	Convey("Given a service that has not started", t, func() {
		svc := newService()
		_, err := svc.ComputeBatch(context.Background(), []service.Request{{At: birth, Longitude: ptr(0.0)}})

		Convey("Then batches are unavailable", func() {
			So(errors.Is(err, worker.ErrPoolStopped), ShouldBeTrue)
		})
	})

	Convey("Given a started service", t, func() {
		svc := newService(service.WithBatchWorkers(2), service.WithMaxBatchItems(3))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { So(svc.Stop(context.Background()), ShouldBeNil) }()

		Convey("When a mixed batch is computed", func() {
			results, err := svc.ComputeBatch(ctx, []service.Request{
				{System: "yogini", At: birth, Longitude: ptr(123.0), Depth: 2},
				{System: "nope", At: birth, Longitude: ptr(0.0)},
				{System: "ashtottari", At: birth, Longitude: ptr(250.0), Depth: 1},
			})

			Convey("Then results keep request order with per-item errors", func() {
				So(err, ShouldBeNil)
				So(len(results), ShouldEqual, 3)
				So(results[0].Err, ShouldBeNil)
				So(results[0].Timeline.System, ShouldEqual, "yogini")
				So(errors.Is(results[1].Err, dasha.ErrUnknownSystem), ShouldBeTrue)
				So(results[1].Timeline, ShouldBeNil)
				So(results[2].Timeline.System, ShouldEqual, "ashtottari")
				So(results[0].ID, ShouldNotEqual, results[2].ID)
			})

			Convey("Then stats include the pool", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				pool, ok := stats["batchPool"].(worker.Stats)
				So(ok, ShouldBeTrue)
				So(pool.Processed, ShouldEqual, int64(3))
			})
		})

		Convey("When the batch is empty or too large", func() {
			_, err := svc.ComputeBatch(ctx, nil)
			So(errors.Is(err, dasha.ErrInputDomain), ShouldBeTrue)

			big := make([]service.Request, 4)
			_, err = svc.ComputeBatch(ctx, big)
			So(errors.Is(err, dasha.ErrInputDomain), ShouldBeTrue)
		})
	})
}

func TestService_BatchLifecycle(t *testing.T) {
	Convey("Given a service started on a context that is later cancelled", t, func() {
		svc := newService(service.WithBatchWorkers(1))
		startCtx, cancel := context.WithCancel(context.Background())
		So(svc.Start(startCtx), ShouldBeNil)
		defer func() { So(svc.Stop(context.Background()), ShouldBeNil) }()
		cancel()

		Convey("Then a later batch still completes", func() {
			type outcome struct {
				results []service.Result
				err     error
			}
			done := make(chan outcome, 1)
			go func() {
				results, err := svc.ComputeBatch(context.Background(), []service.Request{{At: birth, Longitude: ptr(0.0), Depth: 1}})
				done <- outcome{results, err}
			}()

			select {
			case out := <-done:
				So(out.err, ShouldBeNil)
				So(out.results[0].Err, ShouldBeNil)
				So(out.results[0].Timeline, ShouldNotBeNil)
			case <-time.After(2 * time.Second):
				So("batch returned", ShouldEqual, "batch blocked")
			}
		})
	})

	Convey("Given a batch whose request context ends while an item runs", t, func() {
		started := make(chan struct{})
		resolver := ephemeris.ResolverFunc(func(context.Context, ephemeris.Query) (float64, error) {
			close(started)
			time.Sleep(20 * time.Millisecond)
			return 42.0, nil
		})
		svc := newService(service.WithBatchWorkers(1), service.WithResolver(resolver))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer func() { So(svc.Stop(context.Background()), ShouldBeNil) }()

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-started
			cancel()
		}()
		results, err := svc.ComputeBatch(ctx, []service.Request{
			{At: birth, Location: &ephemeris.Location{Latitude: 28.6, Longitude: 77.2}, Depth: 1},
		})

		Convey("Then the running item is complete when the batch returns", func() {
			So(err, ShouldBeNil)
			So(results[0].Err, ShouldBeNil)
			So(results[0].Timeline, ShouldNotBeNil)
			So(results[0].Timeline.Longitude, ShouldEqual, 42.0)
		})
	})
}

func TestService_Systems(t *testing.T) {
	Convey("Given the default service", t, func() {
		svc := newService()

		Convey("Then systems are listed in name order without span tables", func() {
			list := svc.Systems()
			So(list[0].Name, ShouldEqual, "ashtottari")
			So(list[0].Spans, ShouldBeNil)
			So(list[0].Buckets, ShouldEqual, 27)
		})

		Convey("Then an unknown system is reported", func() {
			_, err := svc.System("kalachakra")
			So(errors.Is(err, dasha.ErrUnknownSystem), ShouldBeTrue)
		})

		Convey("Then a sequence can start from any lord", func() {
			seq, err := svc.Sequence("vimshottari", "Moon")
			So(err, ShouldBeNil)
			So(seq[0], ShouldEqual, "Moon")
			So(seq[8], ShouldEqual, "Sun")
		})
	})
}

func TestErrorKind(t *testing.T) {
	Convey("Given errors from every layer", t, func() {
		So(service.ErrorKind(dasha.ErrUnknownSystem), ShouldEqual, service.KindUnknownSystem)
		So(service.ErrorKind(dasha.ErrInputDomain), ShouldEqual, service.KindInvalidInput)
		So(service.ErrorKind(ephemeris.ErrInvalidQuery), ShouldEqual, service.KindInvalidInput)
		So(service.ErrorKind(service.ErrNoLongitude), ShouldEqual, service.KindMissingLongitude)
		So(service.ErrorKind(worker.ErrPoolStopped), ShouldEqual, service.KindUnavailable)
		So(service.ErrorKind(context.Canceled), ShouldEqual, service.KindUnavailable)
		So(service.ErrorKind(errors.New("boom")), ShouldEqual, service.KindInternal)
	})
}
