package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	service "github.com/okian/dasha/internal/app"
)

func newSystemsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "systems [name]",
		Short: "List period systems, or describe one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.newService(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 0 {
				printSystems(cmd.OutOrStdout(), svc.Systems())
				return nil
			}
			info, err := svc.System(args[0])
			if err != nil {
				return err
			}
			from, _ := cmd.Flags().GetString("from")
			if from == "" && len(info.Lords) > 0 {
				from = info.Lords[0].Name
			}
			seq, err := svc.Sequence(info.Name, from)
			if err != nil {
				return err
			}
			printSystem(cmd.OutOrStdout(), info, seq)
			return nil
		},
	}
	cmd.Flags().String("from", "", "lord to start the printed sequence from")
	return cmd
}

var (
	title   = cases.Title(language.English)
	printer = message.NewPrinter(language.English)
)

func printSystems(w io.Writer, infos []service.SystemInfo) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYSTEM\tCYCLE (Y)\tDAYS/YEAR\tLORDS\tBUCKETS")
	for _, info := range infos {
		fmt.Fprint(tw, printer.Sprintf("%s\t%.2f\t%.4f\t%d\t%d\n",
			title.String(info.Name), info.CycleYears, info.DaysPerYear, len(info.Lords), info.Buckets))
	}
	_ = tw.Flush()
}

func printSystem(w io.Writer, info service.SystemInfo, seq []string) {
	fmt.Fprint(w, printer.Sprintf("%s: %.2f-year cycle, %.4f days per year\n\n", title.String(info.Name), info.CycleYears, info.DaysPerYear))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LORD\tYEARS")
	for _, l := range info.Lords {
		fmt.Fprint(tw, printer.Sprintf("%s\t%.4f\n", l.Name, l.Years))
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\nsequence: %s\n\n", strings.Join(seq, " > "))

	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "START\tEND\tLORD\tPOSITION")
	for _, b := range info.Spans {
		fmt.Fprint(tw, printer.Sprintf("%.4f\t%.4f\t%s\t%d/%d\n", b.Start, b.End, b.Lord, b.Position+1, b.GroupSize))
	}
	_ = tw.Flush()
}
