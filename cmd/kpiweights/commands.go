package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"apar/internal/domain/auth"
	"apar/internal/domain/weights"
)

var errInvalidWeights = errors.New("weights failed validation")

type rootOptions struct {
	catalogFile string
	jsonOutput  bool
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "kpiweights",
		Short:         "Normalize and validate KPI weight distributions",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.catalogFile, "catalog", "", "KPI catalog YAML (defaults to the built-in catalog)")
	root.PersistentFlags().BoolVarP(&opts.jsonOutput, "json", "j", false, "print JSON instead of a table")

	root.AddCommand(newNormalizeCmd(opts), newValidateCmd(opts), newDefaultsCmd(opts), newTokenCmd())
	return root
}

func (o *rootOptions) catalog() (*weights.Catalog, error) {
	if o.catalogFile == "" {
		return weights.DefaultCatalog, nil
	}
	data, err := os.ReadFile(o.catalogFile)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return weights.LoadCatalog(data)
}

// parseWeights reads NAME=VALUE arguments. Names may contain spaces when
// quoted by the shell.
func parseWeights(args []string) ([]weights.Weight, error) {
	out := make([]weights.Weight, 0, len(args))
	for _, arg := range args {
		idx := strings.LastIndex(arg, "=")
		if idx <= 0 {
			return nil, fmt.Errorf("expected NAME=VALUE, got %q", arg)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(arg[idx+1:]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value in %q: %w", arg, err)
		}
		out = append(out, weights.Weight{Name: strings.TrimSpace(arg[:idx]), Value: value})
	}
	return out, nil
}

// readPairs loads a YAML or JSON list of {name, fieldWeight, hqWeight}.
func readPairs(path string) ([]weights.KPIWeight, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pairs: %w", err)
	}
	var pairs []weights.KPIWeight
	if err := yaml.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("parsing pairs: %w", err)
	}
	return pairs, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeWeights(w io.Writer, ws []weights.Weight) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KPI\tWEIGHT")
	for _, entry := range ws {
		fmt.Fprintf(tw, "%s\t%.2f\n", entry.Name, entry.Value)
	}
	fmt.Fprintf(tw, "TOTAL\t%.2f\n", weights.Round(weights.Sum(ws)))
	return tw.Flush()
}

func writePairs(w io.Writer, pairs []weights.KPIWeight) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KPI\tFIELD\tHQ")
	var field, hq float64
	for _, p := range pairs {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\n", p.Name, p.FieldWeight, p.HQWeight)
		field += p.FieldWeight
		hq += p.HQWeight
	}
	fmt.Fprintf(tw, "TOTAL\t%.2f\t%.2f\n", weights.Round(field), weights.Round(hq))
	return tw.Flush()
}

func newNormalizeCmd(opts *rootOptions) *cobra.Command {
	var pairsFile string
	cmd := &cobra.Command{
		Use:   "normalize [NAME=VALUE ...]",
		Short: "Normalize weights so they sum to 100",
		Long: `Normalize a single weight set given as NAME=VALUE arguments, or a
field/HQ pair set read from --pairs. Pair sets are filtered against the
catalog, merged by name and normalized per channel.

	Examples:
	  kpiweights normalize "Site Inspections=3" "File Disposal=1"
	  kpiweights normalize --pairs proposal.yaml --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if pairsFile != "" {
				catalog, err := opts.catalog()
				if err != nil {
					return err
				}
				raw, err := readPairs(pairsFile)
				if err != nil {
					return err
				}
				pairs, rejected := catalog.Prepare(raw)
				if opts.jsonOutput {
					return writeJSON(out, map[string]any{"pairs": pairs, "rejected": rejected})
				}
				if len(rejected) > 0 {
					fmt.Fprintf(out, "rejected (not in catalog): %s\n", strings.Join(rejected, ", "))
				}
				return writePairs(out, pairs)
			}

			if len(args) == 0 {
				return errors.New("provide NAME=VALUE arguments or --pairs")
			}
			raw, err := parseWeights(args)
			if err != nil {
				return err
			}
			normalized, diag := weights.NormalizeWithDiagnostics(weights.Dedupe(raw))
			if opts.jsonOutput {
				return writeJSON(out, map[string]any{"weights": normalized, "diagnostics": diag})
			}
			if len(diag.Dropped) > 0 {
				fmt.Fprintf(out, "dropped: %s\n", strings.Join(diag.Dropped, ", "))
			}
			return writeWeights(out, normalized)
		},
	}
	cmd.Flags().StringVarP(&pairsFile, "pairs", "p", "", "YAML or JSON file of {name, fieldWeight, hqWeight} entries")
	return cmd
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var tolerance, minWeight, maxWeight float64
	cmd := &cobra.Command{
		Use:   "validate NAME=VALUE ...",
		Short: "Check a weight set's total and per-KPI range",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := parseWeights(args)
			if err != nil {
				return err
			}
			total := weights.ValidateWeightTotal(ws, tolerance)
			rng := weights.ValidateWeightRange(ws, minWeight, maxWeight)
			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				if err := writeJSON(out, map[string]any{"total": total, "range": rng, "valid": total.Valid && rng.Valid}); err != nil {
					return err
				}
			} else {
				if total.Valid {
					fmt.Fprintf(out, "total: ok (%.2f)\n", total.Total)
				} else {
					fmt.Fprintf(out, "total: %s\n", total.Error)
				}
				for _, v := range rng.Violations {
					fmt.Fprintf(out, "range: %s %.2f %s\n", v.Name, v.Value, v.Reason)
				}
			}
			if !total.Valid || !rng.Valid {
				return errInvalidWeights
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&tolerance, "tolerance", weights.DefaultTolerance, "allowed deviation of the total from 100")
	cmd.Flags().Float64Var(&minWeight, "min", weights.MinTrackedWeight, "smallest allowed non-zero weight")
	cmd.Flags().Float64Var(&maxWeight, "max", weights.MaxWeight, "largest allowed weight")
	return cmd
}

func newDefaultsCmd(opts *rootOptions) *cobra.Command {
	var employeeType string
	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "Print the catalog's default distribution",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := opts.catalog()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if employeeType == "" {
				pairs := catalog.DefaultWeights()
				if opts.jsonOutput {
					return writeJSON(out, pairs)
				}
				return writePairs(out, pairs)
			}

			t := weights.EmployeeType(employeeType)
			if !t.Valid() {
				return fmt.Errorf("--type must be %q or %q", weights.EmployeeTypeField, weights.EmployeeTypeHQ)
			}
			// Zero-weight KPIs are outside this type's template and drop out here.
			channel := weights.Normalize(weights.Channel(catalog.DefaultWeights(), t))
			if opts.jsonOutput {
				return writeJSON(out, channel)
			}
			return writeWeights(out, channel)
		},
	}
	cmd.Flags().StringVarP(&employeeType, "type", "t", "", "employee type channel to print (Field or HQ)")
	return cmd
}

// newTokenCmd mints bearer tokens for local development against a server
// sharing the same secret.
func newTokenCmd() *cobra.Command {
	var (
		secret   string
		userID   string
		tenantID string
		role     string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return errors.New("--secret or JWT_SECRET is required")
			}
			if !auth.KnownRole(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			if tenantID == "" {
				return errors.New("--tenant is required")
			}
			token, err := auth.GenerateToken(secret, auth.Claims{UserID: userID, TenantID: tenantID, RoleName: role}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret (defaults to JWT_SECRET)")
	cmd.Flags().StringVar(&userID, "user", "dev", "user id claim")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id claim")
	cmd.Flags().StringVar(&role, "role", auth.RoleAdmin, "role name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
