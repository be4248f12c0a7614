package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/pph/internal/validation"
	"github.com/Davincible/pph/pkg/crypto/polymath"
)

func newPolyCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poly",
		Short: "GF(256) polynomial tools",
		Long: `Evaluate and interpolate polynomials over GF(2^8) with the AES
reduction polynomial 0x11B. Byte lists are comma separated decimal or
0x-prefixed hex values; coefficients start with the constant term.`,
	}

	cmd.AddCommand(
		newPolyEvalCommand(a),
		newPolyInterpolateCommand(a),
	)

	return cmd
}

func newPolyEvalCommand(a *app) *cobra.Command {
	var (
		x      string
		coeffs string
	)

	cmd := &cobra.Command{
		Use:     "eval",
		Short:   "Evaluate a polynomial at a share index",
		Example: `  pph poly eval --x 1 --coeffs 0x2a,0x05,0x09`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			xs, err := validation.ParseByteList(x)
			if err != nil {
				return fmt.Errorf("invalid --x: %w", err)
			}
			if len(xs) != 1 {
				return fmt.Errorf("--x takes a single byte value")
			}
			cs, err := validation.ParseByteList(coeffs)
			if err != nil {
				return fmt.Errorf("invalid --coeffs: %w", err)
			}

			y, err := polymath.Evaluate(xs[0], cs)
			if err != nil {
				return err
			}

			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]int{"x": int(xs[0]), "y": int(y)})
			}
			cyan := color.New(color.FgCyan, color.Bold)
			cyan.Fprintf(cmd.OutOrStdout(), "f(0x%02x) = 0x%02x\n", xs[0], y)
			return nil
		},
	}

	cmd.Flags().StringVar(&x, "x", "", "Share index (1-255)")
	cmd.Flags().StringVar(&coeffs, "coeffs", "", "Coefficients, constant term first")
	_ = cmd.MarkFlagRequired("x")
	_ = cmd.MarkFlagRequired("coeffs")

	return cmd
}

func newPolyInterpolateCommand(a *app) *cobra.Command {
	var (
		xsFlag string
		ysFlag string
		at     string
	)

	cmd := &cobra.Command{
		Use:     "interpolate",
		Short:   "Recover polynomial coefficients from points",
		Example: `  pph poly interpolate --xs 1,2,3 --ys 0x26,0x04,0x08

  # Value of the interpolated polynomial at x = 4
  pph poly interpolate --xs 1,2,3 --ys 0x26,0x04,0x08 --at 4`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			xs, err := validation.ParseByteList(xsFlag)
			if err != nil {
				return fmt.Errorf("invalid --xs: %w", err)
			}
			ys, err := validation.ParseByteList(ysFlag)
			if err != nil {
				return fmt.Errorf("invalid --ys: %w", err)
			}

			if at != "" {
				xat, err := validation.ParseByteList(at)
				if err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
				if len(xat) != 1 {
					return fmt.Errorf("--at takes a single byte value")
				}
				y, err := polymath.InterpolateAt(xs, ys, xat[0])
				if err != nil {
					return err
				}
				if a.jsonOut {
					return writeJSON(cmd.OutOrStdout(), map[string]int{"x": int(xat[0]), "y": int(y)})
				}
				cyan := color.New(color.FgCyan, color.Bold)
				cyan.Fprintf(cmd.OutOrStdout(), "f(0x%02x) = 0x%02x\n", xat[0], y)
				return nil
			}

			coeffs, err := polymath.Interpolate(xs, ys)
			if err != nil {
				return err
			}

			if a.jsonOut {
				out := make([]int, len(coeffs))
				for i, c := range coeffs {
					out[i] = int(c)
				}
				return writeJSON(cmd.OutOrStdout(), map[string][]int{"coefficients": out})
			}

			w := cmd.OutOrStdout()
			for i, c := range coeffs {
				fmt.Fprintf(w, "a%-3d = 0x%02x\n", i, c)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&xsFlag, "xs", "", "Share indices")
	cmd.Flags().StringVar(&ysFlag, "ys", "", "Values at the share indices")
	cmd.Flags().StringVar(&at, "at", "", "Print the polynomial's value at this x (0 gives the secret) instead of its coefficients")
	_ = cmd.MarkFlagRequired("xs")
	_ = cmd.MarkFlagRequired("ys")

	return cmd
}
