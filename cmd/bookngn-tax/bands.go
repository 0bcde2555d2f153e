package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bookngn/internal/core"
	"bookngn/internal/tax"
)

func newBandsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bands",
		Short: "Print the band schedule of a taxpayer category",
		Args:  cobra.NoArgs,
		RunE:  runBands,
	}
	cmd.Flags().String("category", string(core.PAYE), "taxpayer category: paye, self_employed or company")
	return cmd
}

func runBands(cmd *cobra.Command, args []string) error {
	engine, err := engineFor(cmd)
	if err != nil {
		return err
	}
	rules := engine.Rules()

	raw, _ := cmd.Flags().GetString("category")
	cat, err := core.ParseTaxpayerCategory(raw)
	if err != nil {
		return fmt.Errorf("--category: %w %q", err, raw)
	}
	rule, ok := rules.Category(cat)
	if !ok {
		return fmt.Errorf("%w: %q", tax.ErrUnknownCategory, cat)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n", cat, rules.Name)
	names := []string{rule.Schedule}
	if rule.SmallSchedule != "" {
		fmt.Fprintf(out, "Gross income up to %s uses %s\n", rule.TurnoverLimit, rule.SmallSchedule)
		names = append([]string{rule.SmallSchedule}, names...)
	}

	for _, name := range names {
		s, ok := rules.Schedule(name)
		if !ok {
			return fmt.Errorf("%w: no schedule %q for %q", tax.ErrUnknownCategory, name, cat)
		}
		fmt.Fprintf(out, "\n%s\n", s.Name)
		if err := writeBands(out, scheduleBands(s), false); err != nil {
			return err
		}
	}
	return nil
}

// scheduleBands renders a schedule as band results with nothing taxed.
func scheduleBands(s tax.Schedule) []tax.BandResult {
	out := make([]tax.BandResult, len(s.Bands))
	for i, b := range s.Bands {
		out[i] = tax.BandResult{Lower: b.Lower, Upper: b.Upper, Unbounded: b.Unbounded, Rate: b.Rate}
	}
	return out
}
