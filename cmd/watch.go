/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/valpere/epubtran/internal/config"
	"github.com/valpere/epubtran/internal/watch"
)

var watchOnce bool

var watchKeys = map[string]string{
	"inbox":    "watch.inbox",
	"outbox":   "watch.outbox",
	"schedule": "watch.schedule",
	"workers":  "watch.workers",
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Translate books dropped into an inbox directory",
	Long: `Scan an inbox directory on a cron schedule and translate every
.epub, .txt or .md file that has no translation in the outbox yet.

Output names carry the target language: book.epub becomes book.pt.epub.
Failed files are retried on the next scan.

Example:
  epubtran watch --inbox ./uploads --outbox ./translated --schedule "@every 5m" -t uk`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd, translateKeys); err != nil {
			return err
		}
		return bindFlags(cmd, watchKeys)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sess, err := newSession(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := sess.Close(); cerr != nil {
				logger.WithError(cerr).Warn("cleanup failed")
			}
		}()

		w := watch.New(sess.pipeline, watch.Config{
			Inbox:      cfg.Watch.Inbox,
			Outbox:     cfg.Watch.Outbox,
			TargetLang: cfg.TargetLang,
			Workers:    cfg.Watch.Workers,
		}, logger.WithField("component", "watch"))

		if watchOnce {
			results, err := w.Scan(ctx)
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
				}
			}
			fmt.Printf("Translated %d of %d files\n", len(results)-failed, len(results))
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d files failed", failed)
			}
			return nil
		}

		c := cron.New()
		if _, err := w.Schedule(ctx, c, cfg.Watch.Schedule); err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{
			"inbox":    cfg.Watch.Inbox,
			"outbox":   cfg.Watch.Outbox,
			"schedule": cfg.Watch.Schedule,
		}).Info("watching inbox")

		w.Tick(ctx)
		c.Start()
		<-ctx.Done()
		logger.Info("stopping, waiting for running translations")
		<-c.Stop().Done()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	addTranslateFlags(watchCmd)
	watchCmd.Flags().String("inbox", "./uploads", "Directory to scan for new books")
	watchCmd.Flags().String("outbox", "./translated", "Directory translations are written to")
	watchCmd.Flags().String("schedule", "@every 1m", "Cron schedule of inbox scans")
	watchCmd.Flags().Int("workers", 1, "Books translated at once")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Scan the inbox once and exit")
}
