package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/yeremiapane/waiter-pos/config"
	"github.com/yeremiapane/waiter-pos/database"
	"github.com/yeremiapane/waiter-pos/kds"
	"github.com/yeremiapane/waiter-pos/models"
	"github.com/yeremiapane/waiter-pos/router"
	"github.com/yeremiapane/waiter-pos/services"
	"github.com/yeremiapane/waiter-pos/utils"
	"gorm.io/gorm"
)

func init() {
	utils.InitLogger()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		utils.ErrorLogger.Error(err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var cfg *config.Config

	cmd := &cobra.Command{
		Use:           "waiter-pos",
		Short:         "Waiter POS order and kitchen notification engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.Load()
			utils.SetDebug(cfg.Debug)
		},
	}

	cmd.AddCommand(newServeCommand(&cfg))
	cmd.AddCommand(newHistoryCommand(&cfg))
	return cmd
}

func newServeCommand(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine and the UI API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *cfg)
		},
	}
}

func newHistoryCommand(cfg **config.Config) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "history [order-id]",
		Short: "Print the batches and voids journaled on this device",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID := ""
			if len(args) == 1 {
				orderID = args[0]
			}
			db, err := openJournal(*cfg)
			if err != nil {
				return err
			}
			return printHistory(cmd, services.NewHistoryStore(db), orderID, limit, asJSON)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max rows per section")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func openJournal(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var history *services.HistoryStore
	if db, err := openJournal(cfg); err != nil {
		utils.ErrorLogger.Errorf("Journal disabled: %v", err)
	} else {
		history = services.NewHistoryStore(db)
	}

	hub := kds.NewHub()
	client := services.NewPosClient(&services.PosConfig{
		BaseURL:     cfg.APIBaseURL,
		AccessToken: cfg.AccessToken,
		Timeout:     cfg.RequestTimeout,
	})
	flow := services.NewKitchenFlow(services.FlowOptions{
		API:      client,
		History:  history,
		Notifier: hub,
		Actor:    models.Actor(utils.ActorRole(cfg.AccessToken)),
	})

	var feed services.EventFeed
	if cfg.AMQPURL != "" {
		feed = kds.NewAMQPFeed(cfg.AMQPURL, cfg.AMQPExchange)
	} else {
		feed = kds.NewWebSocketFeed(cfg.RealtimeURL, cfg.AccessToken)
	}
	listener := services.NewFlowListener(flow)
	go func() {
		if err := listener.Consume(ctx, feed); err != nil {
			utils.ErrorLogger.Errorf("Event feed stopped: %v", err)
		}
	}()

	monitor := services.NewChangeMonitor(flow, cfg.PollInterval)
	monitor.Start()
	defer monitor.Stop()

	r := router.SetupRouter(flow, hub, router.Options{
		CORSOrigin:     cfg.CORSOrigins,
		DeviceToken:    cfg.AccessToken,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})
	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: r}

	errCh := make(chan error, 1)
	go func() {
		utils.InfoLogger.Printf("Listening on port %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	utils.InfoLogger.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func printHistory(cmd *cobra.Command, store *services.HistoryStore, orderID string, limit int, asJSON bool) error {
	batches, err := store.Batches(orderID, limit)
	if err != nil {
		return err
	}
	voids, err := store.Voids(orderID, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"batches": batches, "voids": voids})
	}

	fmt.Fprintf(out, "Batches (%d)\n", len(batches))
	for _, b := range batches {
		fmt.Fprintf(out, "  %s  %s  order=%s  units=%d  by=%s", b.CreatedAt.Format(time.RFC3339), b.BatchID, b.OrderID, b.TotalUnits(), b.SourceActor)
		if b.Priority {
			fmt.Fprint(out, "  PRIORITY")
		}
		if b.Note != "" {
			fmt.Fprintf(out, "  note=%q", b.Note)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Voids (%d)\n", len(voids))
	for _, v := range voids {
		fmt.Fprintf(out, "  %s  order=%s  %s\n", v.ReceivedAt.Format(time.RFC3339), v.OrderID, v.Key())
	}
	return nil
}
