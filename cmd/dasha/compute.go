package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	service "github.com/okian/dasha/internal/app"
	"github.com/okian/dasha/internal/domain/dasha"
)

const dateLayout = "2006-01-02 15:04"

func newComputeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Compute one timeline and print it",
		Example: `  dasha compute --longitude 123.4 --at 1990-05-17T06:30:00+05:30
  dasha compute --system yogini --longitude 200 --depth 2 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, asJSON, err := computeRequest(cmd)
			if err != nil {
				return err
			}
			svc, err := c.newService(cmd.Context())
			if err != nil {
				return err
			}
			tl, err := svc.Compute(cmd.Context(), req)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(tl)
			}
			printTimeline(cmd.OutOrStdout(), tl)
			return nil
		},
	}
	f := cmd.Flags()
	f.String("system", "", "period system (default from config)")
	f.String("at", "", "reference instant, RFC 3339 (default now)")
	f.Float64("longitude", 0, "sidereal longitude of the anchoring body in degrees")
	f.Int("depth", 0, "levels to subdivide, 1-5 (default from config)")
	f.Int("lookahead", 0, "top-level periods after the balance period (default from config)")
	f.Bool("json", false, "print the timeline as JSON")
	_ = cmd.MarkFlagRequired("longitude")
	return cmd
}

func computeRequest(cmd *cobra.Command) (service.Request, bool, error) {
	f := cmd.Flags()
	system, _ := f.GetString("system")
	atRaw, _ := f.GetString("at")
	lon, _ := f.GetFloat64("longitude")
	depth, _ := f.GetInt("depth")
	asJSON, _ := f.GetBool("json")

	at := time.Now().UTC()
	if atRaw != "" {
		parsed, err := time.Parse(time.RFC3339, atRaw)
		if err != nil {
			return service.Request{}, false, fmt.Errorf("invalid --at: %w", err)
		}
		at = parsed
	}

	req := service.Request{System: system, At: at, Longitude: &lon, Depth: depth}
	if f.Changed("lookahead") {
		n, _ := f.GetInt("lookahead")
		req.Lookahead = &n
	}
	return req, asJSON, nil
}

func printTimeline(w io.Writer, tl dasha.Timeline) {
	fmt.Fprintf(w, "%s from %s at longitude %.4f\n", tl.System, tl.Reference.Format(time.RFC3339), tl.Longitude)
	fmt.Fprintf(w, "balance %s %.4f years, cycle origin %s\n\n", tl.StartLord, tl.BalanceYears, tl.Origin.Format(dateLayout))
	for _, p := range tl.Periods {
		printPeriod(w, p)
	}
}

func printPeriod(w io.Writer, p dasha.Period) {
	indent := strings.Repeat("  ", p.Level-1)
	fmt.Fprintf(w, "%s%-10s %s  %s .. %s  %8.4fy\n",
		indent, p.Lord, dasha.LevelName(p.Level),
		p.DisplayStart.Format(dateLayout), p.End.Format(dateLayout), p.Years)
	for _, child := range p.Children {
		printPeriod(w, child)
	}
}
