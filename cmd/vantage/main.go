// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/poiesic/vantage"
	"github.com/poiesic/vantage/calibration"
	"github.com/poiesic/vantage/config"
	"github.com/poiesic/vantage/ingestion"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// session carries what Before prepares for the commands.
type session struct {
	cfg         *config.Config
	logger      *slog.Logger
	closeLogger func() error
	engineOpts  []vantage.Option
}

func newApp(engineOpts ...vantage.Option) *cli.App {
	s := &session{engineOpts: engineOpts}
	ownerFlag := &cli.StringFlag{
		Name:     "owner",
		Aliases:  []string{"o"},
		Usage:    "Owner whose videos are addressed",
		Required: true,
	}
	videoFlag := &cli.StringFlag{
		Name:     "video",
		Aliases:  []string{"v"},
		Usage:    "Video ID",
		Required: true,
	}

	return &cli.App{
		Name:  "vantage",
		Usage: "Find the moments of a video collection that match a text query",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				EnvVars: []string{"VANTAGE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error), overriding the config",
			},
		},
		Before: s.setup,
		After:  s.teardown,
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Search an owner's videos for moments matching a query",
				ArgsUsage: "QUERY...",
				Action:    s.searchCommand,
				Flags: []cli.Flag{
					ownerFlag,
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of moments to return",
						Value: 10,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print moments as JSON",
					},
				},
			},
			{
				Name:   "index",
				Usage:  "Index the encoded frames of one video from a JSONL file",
				Action: s.indexCommand,
				Flags: []cli.Flag{
					videoFlag,
					ownerFlag,
					&cli.StringFlag{
						Name:  "path",
						Usage: "Path of the source video file clips are cut from",
					},
					&cli.StringFlag{
						Name:     "frames",
						Aliases:  []string{"f"},
						Usage:    "JSONL file with one frame per line, or - for stdin",
						Required: true,
					},
				},
			},
			{
				Name:   "delete",
				Usage:  "Delete a video's embeddings, clips and job record",
				Action: s.deleteCommand,
				Flags:  []cli.Flag{videoFlag, ownerFlag},
			},
			{
				Name:   "count",
				Usage:  "Print the number of indexed frames",
				Action: s.countCommand,
			},
			{
				Name:   "jobs",
				Usage:  "List indexing jobs",
				Action: s.jobsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "owner",
						Aliases: []string{"o"},
						Usage:   "Only list jobs of this owner",
					},
				},
			},
			{
				Name:   "calibration",
				Usage:  "Print the similarity floor and ceiling derived from the calibration artifact",
				Action: s.calibrationCommand,
			},
		},
	}
}

func (s *session) setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	level, err := config.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", cfg.Log.Level)
	}

	s.cfg = cfg
	s.logger, s.closeLogger = config.SetupLogger(cfg.Log.File, level)
	slog.SetDefault(s.logger)
	return nil
}

func (s *session) teardown(c *cli.Context) error {
	if s.closeLogger != nil {
		return s.closeLogger()
	}
	return nil
}

// withEngine opens the engine for the duration of fn. Interrupts cancel ctx.
func (s *session) withEngine(fn func(ctx context.Context, e *vantage.Engine) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := append([]vantage.Option{vantage.WithLogger(s.logger)}, s.engineOpts...)
	e, err := vantage.Open(s.cfg, opts...)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(ctx, e)
}

func (s *session) searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("a query is required")
	}
	return s.withEngine(func(ctx context.Context, e *vantage.Engine) error {
		moments, err := e.Search(ctx, query, c.String("owner"), c.Int("limit"))
		if err != nil {
			return err
		}
		out := c.App.Writer
		if c.Bool("json") {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(moments)
		}
		if len(moments) == 0 {
			fmt.Fprintln(out, "no moments found")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CONFIDENCE\tVIDEO\tSTART\tEND\tMATCHES\tTYPE\tCLIP")
		for _, m := range moments {
			fmt.Fprintf(tw, "%.3f\t%s\t%.2f\t%.2f\t%d\t%s\t%s\n",
				m.Confidence, m.VideoID, m.StartTime, m.EndTime, m.MatchCount, m.MatchType, m.ClipURL)
		}
		return tw.Flush()
	})
}

func (s *session) indexCommand(c *cli.Context) error {
	var r io.Reader
	if name := c.String("frames"); name == "-" {
		r = c.App.Reader
	} else {
		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("failed to open frames: %w", err)
		}
		defer f.Close()
		r = f
	}

	return s.withEngine(func(ctx context.Context, e *vantage.Engine) error {
		n, err := e.IndexVideo(ctx, ingestion.Job{
			VideoID:   c.String("video"),
			OwnerID:   c.String("owner"),
			VideoPath: c.String("path"),
			Source:    ingestion.NewJSONLSource(r),
		})
		if err != nil {
			return fmt.Errorf("indexing failed: %w", err)
		}
		fmt.Fprintf(c.App.Writer, "indexed %d frames of %s\n", n, c.String("video"))
		return nil
	})
}

func (s *session) deleteCommand(c *cli.Context) error {
	return s.withEngine(func(ctx context.Context, e *vantage.Engine) error {
		res, err := e.DeleteVideo(ctx, c.String("video"), c.String("owner"))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "deleted %d embeddings and %d clips of %s\n",
			res.Embeddings, res.Clips, c.String("video"))
		return nil
	})
}

func (s *session) countCommand(c *cli.Context) error {
	return s.withEngine(func(ctx context.Context, e *vantage.Engine) error {
		n, err := e.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, n)
		return nil
	})
}

func (s *session) jobsCommand(c *cli.Context) error {
	return s.withEngine(func(ctx context.Context, e *vantage.Engine) error {
		jobs, err := e.Jobs(ctx, c.String("owner"))
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VIDEO\tOWNER\tSTATUS\tUPDATED\tERROR")
		for _, j := range jobs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				j.VideoID, j.OwnerID, j.Status, j.UpdatedAt.Format("2006-01-02 15:04:05"), j.Error)
		}
		return tw.Flush()
	})
}

// calibrationCommand only reads the artifact; no store is opened.
func (s *session) calibrationCommand(c *cli.Context) error {
	model, err := calibration.Load(s.cfg.Calibration.File,
		calibration.WithCategories(s.cfg.Calibration.OffCategory, s.cfg.Calibration.ExactCategory))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "artifact: %s\nfloor:    %.4f\nceiling:  %.4f\n",
		s.cfg.Calibration.File, model.Floor(), model.Ceiling())
	return nil
}
