package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.opentelemetry.io/otel/trace"
)

func decodeLines(buf *bytes.Buffer) []map[string]any {
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		rec := map[string]any{}
		if err := json.Unmarshal([]byte(line), &rec); err == nil {
			out = append(out, rec)
		}
	}
	return out
}

func TestLoggerInit(t *testing.T) {
	Convey("Given the default initialization", t, func() {
		So(Init(), ShouldBeNil)
		defer func() { So(Sync(), ShouldBeNil) }()

		Convey("Then a global and a named logger are available", func() {
			So(Get(), ShouldNotBeNil)
			So(Named("test"), ShouldNotBeNil)
			Get().Info(context.Background(), "test message", String("k", "v"))
		})
	})

	Convey("Given an unknown format or level", t, func() {
		So(InitWithFormat("xml", "info", &bytes.Buffer{}), ShouldNotBeNil)
		So(InitWithFormat("json", "loud", &bytes.Buffer{}), ShouldNotBeNil)
	})
}

func TestLoggerJSON(t *testing.T) {
	Convey("Given a JSON logger at info level", t, func() {
		buf := &bytes.Buffer{}
		So(InitWithFormat(FormatJSON, "info", buf), ShouldBeNil)
		log := Named("engine").With(String("system", "vimshottari"))

		Convey("When records at several levels are written", func() {
			ctx := context.Background()
			log.Debug(ctx, "hidden")
			log.Info(ctx, "computed",
				Int("depth", 3),
				Float64("longitude", 12.5),
				Bool("clipped", true),
				Duration("took", 2*time.Millisecond),
				Time("at", time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)),
			)
			log.Error(ctx, "failed", Error(errors.New("boom")))
			recs := decodeLines(buf)

			Convey("Then debug is filtered and fields are structured", func() {
				So(len(recs), ShouldEqual, 2)
				So(recs[0]["msg"], ShouldEqual, "computed")
				So(recs[0]["component"], ShouldEqual, "engine")
				So(recs[0]["system"], ShouldEqual, "vimshottari")
				So(recs[0]["depth"], ShouldEqual, 3.0)
				So(recs[0]["clipped"], ShouldEqual, true)
				So(recs[0]["source"], ShouldContainSubstring, "logger_test.go:")
				So(recs[1]["error"], ShouldEqual, "boom")
			})
		})

		Convey("When the level is lowered at runtime", func() {
			So(SetLevelString("DEBUG"), ShouldBeNil)
			Get().Debug(context.Background(), "visible")
			So(len(decodeLines(buf)), ShouldEqual, 1)
			So(SetLevelString("info"), ShouldBeNil)
		})

		Convey("When a span is active on the context", func() {
			sc := trace.NewSpanContext(trace.SpanContextConfig{
				TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
				SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
				TraceFlags: trace.FlagsSampled,
			})
			ctx := trace.ContextWithSpanContext(context.Background(), sc)
			Get().Info(ctx, "traced")
			recs := decodeLines(buf)

			Convey("Then the record carries the trace identifiers", func() {
				So(len(recs), ShouldEqual, 1)
				So(recs[0]["trace_id"], ShouldEqual, sc.TraceID().String())
				So(recs[0]["span_id"], ShouldEqual, sc.SpanID().String())
			})
		})
	})
}

func TestNop(t *testing.T) {
	Convey("Given a nop logger", t, func() {
		log := Nop()
		So(func() {
			log.Named("x").With(Int("n", 1)).Error(context.Background(), "dropped")
		}, ShouldNotPanic)
	})
}
