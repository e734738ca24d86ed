package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BKHilton/Ember/internal/core"
	"github.com/BKHilton/Ember/internal/workers"
	"github.com/BKHilton/Ember/pkg/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the past-due sweep and digest scheduler until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			scheduler := workers.NewDigestScheduler(a.svc, a.cfg.Digest.Tolerance, a.log)
			scheduler.SetDeliveryTimeout(a.cfg.Digest.DeliveryTimeout)
			group := workers.NewGroup(
				workers.NewRunner(workers.SweepJob(a.svc, a.cfg.Jobs.SweepInterval, a.log.Named("sweep")), a.log),
				workers.NewRunner(scheduler.Job(a.cfg.Jobs.DigestInterval), a.log),
			)
			group.Start()
			defer group.Stop()

			if addr := a.cfg.Metrics.Addr; addr != "" {
				srv := &http.Server{
					Addr:              addr,
					Handler:           promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.log.Error("metrics server failed", zap.Error(err))
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
				a.log.Info("metrics listening", zap.String("addr", addr))
			}

			a.log.Info("ember serving", zap.String("version", Version))
			<-ctx.Done()
			a.log.Info("shutting down")
			return nil
		},
	}
}

func exportCmd(configPath *string) *cobra.Command {
	var churchID, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a church's records as a sync bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			bundle, ok := a.svc.CreateSyncBundle(cmd.Context(), churchID)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityChurch, ID: churchID}
			}
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create bundle file: %w", err)
				}
				if err := core.WriteSyncBundle(f, bundle); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			}

			var buf bytes.Buffer
			if err := core.WriteSyncBundle(&buf, bundle); err != nil {
				return err
			}
			key := fmt.Sprintf("bundles/%s/%s.json", churchID, bundle.GeneratedAt.Format("20060102T150405Z"))
			obj, err := a.svc.Blobs().Write(cmd.Context(), key, buf.Bytes(), "application/json")
			if err != nil {
				return fmt.Errorf("store bundle: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), obj.Location)
			return nil
		},
	}
	cmd.Flags().StringVar(&churchID, "church", "", "Church id")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the bundle to this file instead of the blob store")
	_ = cmd.MarkFlagRequired("church")
	return cmd
}

func importCmd(configPath *string) *cobra.Command {
	var churchID string
	cmd := &cobra.Command{
		Use:   "import [bundle.json]",
		Short: "Merge a sync bundle into a church",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open bundle: %w", err)
			}
			bundle, err := core.ReadSyncBundle(f)
			_ = f.Close()
			if err != nil {
				return err
			}
			result, err := a.svc.ImportSyncBundle(cmd.Context(), churchID, bundle, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&churchID, "church", "", "Destination church id")
	_ = cmd.MarkFlagRequired("church")
	return cmd
}

func digestCmd(configPath *string) *cobra.Command {
	var churchID, kind string
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Generate and deliver a digest now",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			delivery, err := a.svc.DeliverDigest(cmd.Context(), churchID, domain.DigestKind(kind), a.svc.Now())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"report":  delivery.Report,
				"emailed": delivery.Emailed,
				"digest":  delivery.Digest,
			})
		},
	}
	cmd.Flags().StringVar(&churchID, "church", "", "Church id")
	cmd.Flags().StringVar(&kind, "kind", string(domain.DigestWeekly), "Digest period (weekly, monthly)")
	_ = cmd.MarkFlagRequired("church")
	return cmd
}

func sweepCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark overdue tasks past due once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			changed, err := a.svc.SweepPastDue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d task(s) marked past due\n", len(changed))
			return nil
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Upgrade the stored document to the current version and rewrite it",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.Flush(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "document at version %d (%s)\n", core.DocumentVersion, a.store.Backend().Name())
			return nil
		},
	}
}

func seedCmd(configPath *string) *cobra.Command {
	var (
		in       core.RegisterChurchInput
		campuses []string
		timezone string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Register a church with its campuses and director",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, name := range campuses {
				in.Campuses = append(in.Campuses, core.CampusInput{Name: name, Timezone: timezone})
			}
			church, director, err := a.svc.RegisterChurch(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"church_id":   church.ID,
				"campus_ids":  church.CampusIDs,
				"director_id": director.ID,
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "Church name")
	cmd.Flags().StringSliceVar(&campuses, "campus", nil, "Campus name (repeatable; the first is primary)")
	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone of the campuses")
	cmd.Flags().StringVar(&in.Director.Name, "director-name", "", "Director display name")
	cmd.Flags().StringVar(&in.Director.Email, "director-email", "", "Director email")
	cmd.Flags().StringVar(&in.Director.Password, "director-password", "", "Director password")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("director-email")
	_ = cmd.MarkFlagRequired("director-password")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
