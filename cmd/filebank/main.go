// Copyright (C) 2026 Filebank Labs.
// See LICENSE for copying information.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"filebank.io/filebank"
	"filebank.io/filebank/bank"
	"filebank.io/filebank/bank/capacity"
	"filebank.io/filebank/bank/currency"
	"filebank.io/filebank/bank/ledger"
	"filebank.io/filebank/bank/oracle"
	"filebank.io/filebank/bank/registry"
	"filebank.io/filebank/storage/boltdb"
	"filebank.io/filebank/storage/storelogger"
)

var (
	rootCmd = &cobra.Command{
		Use:   "filebank",
		Short: "Filebank storage accounting core",
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the accounting core",
		RunE:  cmdRun,
	}

	confDir string
)

func init() {
	defaultConfDir, err := homedir.Expand("~/.filebank")
	if err != nil {
		defaultConfDir = ".filebank"
	}

	rootCmd.AddCommand(runCmd)
	rootCmd.PersistentFlags().StringVar(&confDir, "config-dir", defaultConfDir, "main directory for filebank configuration")

	flags := runCmd.Flags()
	flags.String("database", "", "path of the accounting database (default <config-dir>/filebank.db)")
	flags.String("identity", "", "local identity used to sign oracle price submissions")
	flags.Uint64("capacity.total", 1048576, "total network capacity available for purchase, in capacity units")
	flags.String("ledger.treasury", "filebank-treasury", "account receiving space purchase fees")
	flags.Duration("ledger.lease-period", 720*time.Hour, "length of one lease period")
	flags.Uint64("ledger.price-constant", 1024000000000000000, "numerator of the capacity-derived unit price")
	flags.Uint64("ledger.free-grant-units", 1024, "capacity units granted by the one-time free allowance")
	flags.String("registry.treasury", "filebank-treasury", "account receiving the platform share of download fees")
	flags.Uint64("registry.gateway-deposit", 780000000000, "deposit paid out to the gateway per delegated operation")
	flags.String("oracle.endpoint", "https://api.coincap.io/v2/assets/polkadot", "price endpoint to fetch the market price from")
	flags.Duration("oracle.fetch-timeout", 10*time.Second, "timeout of a single price fetch")
	flags.Duration("oracle.lock-duration", 11*time.Second, "wall-clock bound of the fetch advisory lock")
	flags.Uint64("oracle.lock-ticks", 3, "tick-count bound of the fetch advisory lock")
	flags.Duration("scheduler.tick-interval", 6*time.Second, "how often the scheduler heartbeat fires")
	flags.Uint64("scheduler.sweep-every", 28800, "run the lease expiry sweep every this many ticks")
	flags.Uint64("scheduler.oracle-every", 10, "run the price oracle every this many ticks")

	cobra.CheckErr(viper.BindPFlags(flags))
	viper.SetEnvPrefix("FILEBANK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

func cmdRun(cmd *cobra.Command, args []string) (err error) {
	viper.SetConfigName("config")
	viper.AddConfigPath(confDir)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	config := filebank.Config{
		Capacity: capacity.Config{
			Total: viper.GetUint64("capacity.total"),
		},
		Ledger: ledger.Config{
			Treasury:       viper.GetString("ledger.treasury"),
			LeasePeriod:    viper.GetDuration("ledger.lease-period"),
			PriceConstant:  viper.GetUint64("ledger.price-constant"),
			FreeGrantUnits: viper.GetUint64("ledger.free-grant-units"),
		},
		Registry: registry.Config{
			Treasury:       viper.GetString("registry.treasury"),
			GatewayDeposit: viper.GetUint64("registry.gateway-deposit"),
		},
		Oracle: oracle.Config{
			Endpoint:     viper.GetString("oracle.endpoint"),
			FetchTimeout: viper.GetDuration("oracle.fetch-timeout"),
			LockDuration: viper.GetDuration("oracle.lock-duration"),
			LockTicks:    viper.GetUint64("oracle.lock-ticks"),
		},
		Scheduler: bank.SchedulerConfig{
			TickInterval: viper.GetDuration("scheduler.tick-interval"),
			SweepEvery:   viper.GetUint64("scheduler.sweep-every"),
			OracleEvery:  viper.GetUint64("scheduler.oracle-every"),
		},
	}

	dbPath := viper.GetString("database")
	if dbPath == "" {
		if err := os.MkdirAll(confDir, 0700); err != nil {
			return err
		}
		dbPath = filepath.Join(confDir, "filebank.db")
	}

	db, err := boltdb.New(dbPath, "bank")
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	store := storelogger.New(log.Named("store"), db)
	signer := oracle.NewLocalSigner(log.Named("signer"), viper.GetString("identity"), nil)

	peer, err := filebank.New(log, store, currency.NewLedger(), signer, config)
	if err != nil {
		return err
	}
	defer func() { _ = peer.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("accounting core started",
		zap.String("database", dbPath),
		zap.Uint64("capacity", config.Capacity.Total))
	return peer.Run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
