package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/deeplooplabs/crystalcache/client"
	"github.com/deeplooplabs/crystalcache/perf"
)

// warmUpCommand creates the "warm-up" command.
func (c *CLI) warmUpCommand() *cobra.Command {
	var (
		prefetch       []string
		prefetchClient string
		concurrency    int
	)

	cmd := &cobra.Command{
		Use:   "warm-up",
		Short: "Preload the catalog caches",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withSession(ctx, func(s *session) error {
				monitor := perf.NewMonitor(perf.WithLogger(c.structured()))
				monitor.Mark("warm-up")

				if len(s.warmUp) == 0 && len(prefetch) == 0 {
					c.printInfo("Nothing to warm up")
					return nil
				}

				if len(s.warmUp) > 0 {
					report := s.WarmUp(ctx, s.warmUp...)
					for _, o := range report.Outcomes {
						if o.Err != nil {
							c.printError("%s: %v", o.Target, o.Err)
							continue
						}
						c.printSuccess("%s %s", o.Target, styleDim.Render(o.Duration.Round(time.Millisecond).String()))
					}
					c.printInfo("Warmed %d/%d targets", report.Succeeded(), len(report.Outcomes))
				}

				if len(prefetch) > 0 {
					api, ok := s.Client(prefetchClient)
					if !ok {
						return fmt.Errorf("unknown client %q", prefetchClient)
					}
					n := perf.Prefetch(ctx, func(ctx context.Context, endpoint string) error {
						_, err := api.Get(ctx, endpoint, nil, nil)
						return err
					}, prefetch, concurrency, perf.WithLogger(c.structured()))
					c.printInfo("Prefetched %d/%d endpoints", n, len(prefetch))
				}

				c.printDetail("took %s", monitor.Measure("warm-up", "").Round(time.Millisecond))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&prefetch, "prefetch", nil, "extra endpoints to preload")
	cmd.Flags().StringVar(&prefetchClient, "prefetch-client", "api", "client used for --prefetch")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "maximum prefetches in flight")
	return cmd
}

// statsCommand creates the "stats" command.
func (c *CLI) statsCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics per client",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withSession(ctx, func(s *session) error {
				stats := s.Stats(ctx)
				if asJSON {
					return c.printJSON(stats)
				}

				names := make([]string, 0, len(stats))
				for name := range stats {
					names = append(names, name)
				}
				sort.Strings(names)

				for _, name := range names {
					st := stats[name]
					c.printTitle(name)
					c.printKeyValue("request cache", fmt.Sprintf("%d entries, %.0f%% hit rate", st.Request.Size, st.Request.HitRate*100))
					c.printKeyValue("mutation cache", fmt.Sprintf("%d entries", st.Mutation.Size))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// getCommand creates the "get" command.
func (c *CLI) getCommand() *cobra.Command {
	var (
		clientName string
		params     map[string]string
		noCache    bool
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "get <endpoint>",
		Short: "Fetch an endpoint through the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withSession(ctx, func(s *session) error {
				cl, ok := s.Client(clientName)
				if !ok {
					return fmt.Errorf("unknown client %q", clientName)
				}

				query := make(map[string]any, len(params))
				for k, v := range params {
					query[k] = paramValue(v)
				}
				rc := &client.RequestConfig{Timeout: timeout}
				if noCache {
					rc.Cache = client.Bool(false)
				}

				data, err := cl.Get(ctx, args[0], query, rc)
				if err != nil {
					return err
				}

				var out bytes.Buffer
				if err := json.Indent(&out, data, "", "  "); err != nil {
					return err
				}
				fmt.Fprintln(c.out, out.String())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&clientName, "client", "c", "api", "client to use")
	cmd.Flags().StringToStringVarP(&params, "param", "p", nil, "query parameters (key=value)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the request cache")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-attempt timeout (default: client timeout)")
	return cmd
}

// paramValue types a command-line parameter the way a Go caller would pass it,
// so that "limit=10" shares a cache key with map[string]any{"limit": 10}
func paramValue(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// clearCommand creates the "clear" command.
func (c *CLI) clearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear every client cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withSession(ctx, func(s *session) error {
				s.ClearAll(ctx)
				c.printSuccess("Cleared %d clients", len(s.Names()))
				return nil
			})
		},
	}
}

// statusCommand creates the "status" command.
func (c *CLI) statusCommand() *cobra.Command {
	var (
		probeURL string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show network and device information",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var probe perf.Connectivity = perf.InterfaceProbe{}
			if probeURL != "" {
				probe = perf.LatencyProbe{URL: probeURL, Base: perf.InterfaceProbe{}}
			}
			network := perf.NetworkStatus(ctx, probe)
			device := perf.DevicePerformance(ctx, probe)

			if asJSON {
				return c.printJSON(map[string]any{"network": network, "device": device})
			}

			c.printTitle("network")
			c.printKeyValue("online", fmt.Sprint(network.Online))
			if network.ConnectionType != "" {
				c.printKeyValue("connection", network.ConnectionType)
			}
			if network.EffectiveType != "" {
				c.printKeyValue("effective type", network.EffectiveType)
			}
			c.printTitle("device")
			c.printKeyValue("cores", fmt.Sprint(device.Cores))
			c.printKeyValue("memory", fmt.Sprintf("%.0f%%", device.MemoryRatio*100))
			return nil
		},
	}

	cmd.Flags().StringVar(&probeURL, "probe-url", "", "URL to time for the effective connection type")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
