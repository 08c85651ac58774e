// Command qrawl is the CLI front end: policies + extraction, JSON only.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/use-agent/qrawl"
	"github.com/use-agent/qrawl/batch"
	"github.com/use-agent/qrawl/cleaner"
	"github.com/use-agent/qrawl/fetch"
	"github.com/use-agent/qrawl/mapper"
	"github.com/use-agent/qrawl/models"
)

func main() {
	// The CLI speaks JSON on stdout; keep logs quiet unless asked for.
	level := slog.LevelWarn
	if os.Getenv("QRAWL_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var unknown bool

	root := &cobra.Command{
		Use:           "qrawl [url]",
		Short:         "Domain-aware web extraction: policies + extraction (JSON only)",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			client, err := qrawl.New()
			if err != nil {
				return fail(err)
			}
			var bundle *models.ExtractionBundle
			if unknown {
				bundle, err = client.Extract(cmd.Context(), args[0], true)
			} else {
				bundle, err = client.ExtractAuto(cmd.Context(), args[0])
			}
			if err != nil {
				return fail(err)
			}
			printJSON(models.OK(bundle))
			return nil
		},
	}
	root.Flags().BoolVar(&unknown, "unknown", false, "force the unknown pipeline (re-run inference)")

	root.AddCommand(policyCmd(), batchCmd(), mapCmd(), cleanCmd())
	return root
}

func policyCmd() *cobra.Command {
	policy := &cobra.Command{
		Use:   "policy",
		Short: "Manage per-domain policies",
	}

	policy.AddCommand(&cobra.Command{
		Use:   "create <domain>",
		Short: "Probe a domain, infer a working policy, verify live, save it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := qrawl.New()
			if err != nil {
				return fail(err)
			}
			pol, err := client.CreatePolicy(cmd.Context(), args[0])
			if err != nil {
				return fail(err)
			}
			printJSON(policyKeyed(pol))
			return nil
		},
	})

	policy.AddCommand(&cobra.Command{
		Use:   "read <domain>|all",
		Short: "Read one policy, or list all domains",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := qrawl.New()
			if err != nil {
				return fail(err)
			}
			if args[0] == "all" {
				policies, err := client.ListPolicies()
				if err != nil {
					return fail(err)
				}
				domains := make([]string, 0, len(policies))
				for _, p := range policies {
					domains = append(domains, p.Domain)
				}
				printJSON(domains)
				return nil
			}
			pol, err := client.ReadPolicy(args[0])
			if err != nil {
				return fail(err)
			}
			if pol == nil {
				return fail(models.NewMissingPolicy(args[0]))
			}
			printJSON(policyKeyed(pol))
			return nil
		},
	})

	var yes bool
	del := &cobra.Command{
		Use:   "delete <domain>|all",
		Short: "Delete a policy (or all) with confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fail(models.NewValidation("confirm", "refusing to delete without --yes"))
			}
			client, err := qrawl.New()
			if err != nil {
				return fail(err)
			}
			if args[0] == "all" {
				err = client.DeleteAllPolicies()
			} else {
				err = client.DeletePolicy(args[0])
			}
			if err != nil {
				return fail(err)
			}
			printJSON(models.OK(map[string]string{"deleted": args[0]}))
			return nil
		},
	}
	del.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	policy.AddCommand(del)

	return policy
}

func batchCmd() *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "batch <url>...",
		Short: "Extract several seed URLs with bounded concurrency",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := qrawl.New()
			if err != nil {
				return fail(err)
			}
			items := batch.Run(cmd.Context(), args, concurrency,
				func(ctx context.Context, url string) (*models.ExtractionBundle, error) {
					return client.ExtractAuto(ctx, url)
				})
			printJSON(models.OK(items))
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "extractions in flight")
	return cmd
}

func mapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "map <url>",
		Short: "Mine a page's repeating structure and child URLs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			html, err := fetch.FetchHTML(cmd.Context(), args[0])
			if err != nil {
				return fail(err)
			}
			siblings := mapper.Siblings(html)
			printJSON(models.OK(map[string]any{
				"sibling_links":  mapper.MapSiblingLinks(siblings, args[0]),
				"itemlist_links": mapper.ItemListLinks(html, args[0]),
			}))
			return nil
		},
	}
}

func cleanCmd() *cobra.Command {
	var mainOnly bool
	var selector string
	cmd := &cobra.Command{
		Use:   "clean <url>",
		Short: "Fetch a page and strip junk markup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			html, err := fetch.FetchHTML(cmd.Context(), args[0])
			if err != nil {
				return fail(err)
			}
			if mainOnly {
				html = cleaner.MainContent(html)
			}
			if selector != "" {
				html, err = cleaner.ApplyCSSSelector(html, selector)
				if err != nil {
					return fail(models.NewValidation("css_selector", err.Error()))
				}
			}
			printJSON(models.OK(map[string]string{"html": cleaner.Clean(html)}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&mainOnly, "main-only", false, "narrow to the main content region first")
	cmd.Flags().StringVar(&selector, "selector", "", "filter output to a CSS selector")
	return cmd
}

// policyKeyed renders a policy in its on-disk shape: a one-key object
// keyed by the canonical domain.
func policyKeyed(p *models.Policy) map[string]any {
	return map[string]any{
		p.Domain: map[string]any{
			"config": map[string]any{
				"fetch":  p.Fetch,
				"scrape": p.Scrape,
			},
			"performance_profile": p.PerformanceProfile,
		},
	}
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	fmt.Println(string(data))
}

// fail prints the error envelope and returns the error so cobra exits
// non-zero; SilenceErrors keeps cobra from printing it again.
func fail(err error) error {
	printJSON(models.Err[any](err.Error()))
	return err
}
