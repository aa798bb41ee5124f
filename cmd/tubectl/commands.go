package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hszk-dev/tubelytics/internal/dispatch"
	"github.com/hszk-dev/tubelytics/internal/domain/model"
)

// withClient dials the server, runs fn and closes the connection.
func withClient(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, c *client) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), flags.timeout)
	defer cancel()

	c, err := dial(ctx, flags.server, flags.session)
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(ctx, c)
}

func newSearchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "search <keywords...>",
		Short: "Search videos and print the session's search history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, flags, func(ctx context.Context, c *client) error {
				var p dispatch.SearchPayload
				req := dispatch.Request{Type: dispatch.TypeSearch, Query: strings.Join(args, " ")}
				if err := c.do(ctx, req, &p); err != nil {
					return err
				}
				printSearches(cmd.OutOrStdout(), p)
				return nil
			})
		},
	}
}

func newRefreshCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Re-fetch every cached search of the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, flags, func(ctx context.Context, c *client) error {
				var p dispatch.SearchPayload
				if err := c.do(ctx, dispatch.Request{Type: dispatch.TypeRefresh}, &p); err != nil {
					return err
				}
				printSearches(cmd.OutOrStdout(), p)
				return nil
			})
		},
	}
}

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show the session's cached searches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, flags, func(ctx context.Context, c *client) error {
				var p dispatch.SearchPayload
				if err := c.do(ctx, dispatch.Request{Type: dispatch.TypeHistory}, &p); err != nil {
					return err
				}
				printSearches(cmd.OutOrStdout(), p)
				return nil
			})
		},
	}
}

func newStatsCmd(flags *globalFlags) *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "stats <keywords...>",
		Short: "Show word frequencies across a search's video descriptions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, flags, func(ctx context.Context, c *client) error {
				var p dispatch.StatisticsPayload
				req := dispatch.Request{Type: dispatch.TypeStatistics, SearchTerm: strings.Join(args, " ")}
				if err := c.do(ctx, req, &p); err != nil {
					return err
				}
				printStats(cmd.OutOrStdout(), p, top)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&top, "top", 20, "number of words to show (0 for all)")
	return cmd
}

func newVideoCmd(flags *globalFlags) *cobra.Command {
	var fresh bool

	cmd := &cobra.Command{
		Use:   "video <id>",
		Short: "Show a single video's metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, flags, func(ctx context.Context, c *client) error {
				var v model.Video
				req := dispatch.Request{Type: dispatch.TypeMetadata, VideoID: args[0], Fresh: fresh}
				if err := c.do(ctx, req, &v); err != nil {
					return err
				}
				printVideo(cmd.OutOrStdout(), v)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&fresh, "fresh", false, "bypass cached metadata")
	return cmd
}

func printSearches(out io.Writer, p dispatch.SearchPayload) {
	fmt.Fprintf(out, "session %s, %d searches\n", p.SessionID, len(p.Records))
	for _, r := range p.Records {
		fmt.Fprintf(out, "\n%q  %s  ease %.2f  grade %.2f\n",
			r.Query, r.Analysis.Sentiment, r.Analysis.ReadingEase, r.Analysis.GradeLevel)

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tCHANNEL\tPUBLISHED")
		for _, v := range r.Videos {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", v.ID, v.Title, v.ChannelTitle, v.PublishedAt.Format("2006-01-02"))
		}
		w.Flush()
	}
}

func printStats(out io.Writer, p dispatch.StatisticsPayload, top int) {
	words := p.Words
	if top > 0 && len(words) > top {
		words = words[:top]
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WORD\tCOUNT")
	for _, wc := range words {
		fmt.Fprintf(w, "%s\t%d\n", wc.Word, wc.Count)
	}
	w.Flush()
}

func printVideo(out io.Writer, v model.Video) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%s\n", v.ID)
	fmt.Fprintf(w, "Title\t%s\n", v.Title)
	fmt.Fprintf(w, "Channel\t%s (%s)\n", v.ChannelTitle, v.ChannelURL())
	fmt.Fprintf(w, "Published\t%s\n", v.PublishedAt.Format("2006-01-02"))
	fmt.Fprintf(w, "Views\t%d\n", v.ViewCount)
	fmt.Fprintf(w, "Tags\t%s\n", strings.Join(v.Tags, ", "))
	fmt.Fprintf(w, "URL\t%s\n", v.WatchURL())
	w.Flush()
}
