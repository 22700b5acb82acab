package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/dasha/internal/config"
	"github.com/okian/dasha/internal/domain/dasha"
	"github.com/okian/dasha/pkg/logger"
)

func run(args ...string) (string, string, error) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	root := newRootCmd()
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestComputeCommand(t *testing.T) {
	t.Setenv("DASHA_CONFIG", "")

	Convey("Given the compute command", t, func() {
		Convey("When JSON output is requested", func() {
			out, _, err := run("compute", "--longitude", "0", "--at", "2000-01-01T00:00:00Z",
				"--depth", "1", "--lookahead", "2", "--json")
			So(err, ShouldBeNil)

			var tl dasha.Timeline
			So(json.Unmarshal([]byte(out), &tl), ShouldBeNil)

			Convey("Then the full balance period leads the timeline", func() {
				So(tl.System, ShouldEqual, "vimshottari")
				So(tl.StartLord, ShouldEqual, "Ketu")
				So(len(tl.Periods), ShouldEqual, 3)
				So(tl.Periods[0].IsBalance, ShouldBeTrue)
				So(tl.Periods[0].Years, ShouldAlmostEqual, 7.0, 1e-9)
				So(tl.Periods[1].Lord, ShouldEqual, "Venus")
				So(len(tl.Periods[0].Children), ShouldEqual, 0)
			})
		})

		Convey("When text output is requested", func() {
			out, _, err := run("compute", "--system", "Yogini", "--longitude", "200",
				"--at", "2000-01-01T00:00:00Z", "--depth", "2", "--lookahead", "0")

			Convey("Then a nested listing is printed", func() {
				So(err, ShouldBeNil)
				So(out, ShouldContainSubstring, "yogini from 2000-01-01T00:00:00Z")
				So(out, ShouldContainSubstring, "balance ")
				So(out, ShouldContainSubstring, "  ")
			})
		})

		Convey("When inputs are bad", func() {
			_, _, err := run("compute", "--longitude", "10", "--at", "yesterday")
			So(err, ShouldNotBeNil)

			_, _, err = run("compute", "--longitude", "10", "--system", "kalachakra")
			So(errors.Is(err, dasha.ErrUnknownSystem), ShouldBeTrue)

			_, _, err = run("compute", "--longitude", "10", "--depth", "9")
			So(errors.Is(err, dasha.ErrInputDomain), ShouldBeTrue)

			_, _, err = run("compute")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestSystemsCommand(t *testing.T) {
	t.Setenv("DASHA_CONFIG", "")

	Convey("Given the systems command", t, func() {
		Convey("When listing", func() {
			out, _, err := run("systems")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "SYSTEM")
			So(out, ShouldContainSubstring, "Vimshottari")
			So(out, ShouldContainSubstring, "Ashtottari")
		})

		Convey("When describing one system", func() {
			out, _, err := run("systems", "yogini", "--from", "ulka")
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "Yogini: 36.00-year cycle")
			So(out, ShouldContainSubstring, "sequence: Ulka > Siddha > Sankata > Mangala")
			So(out, ShouldContainSubstring, "POSITION")
		})

		Convey("When the system is unknown", func() {
			_, _, err := run("systems", "kalachakra")
			So(errors.Is(err, dasha.ErrUnknownSystem), ShouldBeTrue)
		})
	})
}

func TestEphemerisSettingsWarning(t *testing.T) {
	t.Setenv("DASHA_CONFIG", "")

	Convey("Given ephemeris settings without a resolver", t, func() {
		t.Setenv("DASHA_EPHEMERIS_PATH", "/srv/ephe")

		Convey("When a command builds the service", func() {
			_, stderr, err := run("compute", "--longitude", "0", "--at", "2000-01-01T00:00:00Z",
				"--depth", "1", "--lookahead", "0", "--json")

			Convey("Then a warning names the ignored settings", func() {
				So(err, ShouldBeNil)
				So(stderr, ShouldContainSubstring, "ephemeris settings ignored")
				So(stderr, ShouldContainSubstring, "/srv/ephe")
			})
		})
	})

	Convey("Given no ephemeris settings", t, func() {
		cfg := config.New()

		Convey("Then nothing is reported", func() {
			So(warnEphemerisIgnored(context.Background(), logger.Nop(), cfg), ShouldBeFalse)
			cfg.EphemerisMode = "moshier"
			So(warnEphemerisIgnored(context.Background(), logger.Nop(), cfg), ShouldBeTrue)
		})
	})
}

func TestRootFlags(t *testing.T) {
	Convey("Given a config file and flag overrides", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "dasha.yaml")
		So(os.WriteFile(path, []byte("default_system: yogini\nlog_format: json\n"), 0o600), ShouldBeNil)

		Convey("When compute runs without --system", func() {
			out, _, err := run("--config", path, "--log-level", "warn", "compute", "--longitude", "0",
				"--at", "2000-01-01T00:00:00Z", "--depth", "1", "--lookahead", "0", "--json")
			So(err, ShouldBeNil)

			var tl dasha.Timeline
			So(json.Unmarshal([]byte(out), &tl), ShouldBeNil)

			Convey("Then the configured default system is used", func() {
				So(tl.System, ShouldEqual, "yogini")
			})
		})

		Convey("When the log format override is invalid", func() {
			_, _, err := run("--config", path, "--log-format", "xml", "systems")
			So(err, ShouldNotBeNil)
		})

		Convey("When the config file is missing", func() {
			_, _, err := run("--config", filepath.Join(dir, "missing.yaml"), "systems")
			So(err, ShouldNotBeNil)
		})
	})
}
