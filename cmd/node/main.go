package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/predictr-labs/predictr/params"
	"github.com/predictr-labs/predictr/pkg/api"
	"github.com/predictr-labs/predictr/pkg/app/core"
	"github.com/predictr-labs/predictr/pkg/app/core/transaction"
	"github.com/predictr-labs/predictr/pkg/app/engine"
	"github.com/predictr-labs/predictr/pkg/app/ledger"
	"github.com/predictr-labs/predictr/pkg/crypto"
	"github.com/predictr-labs/predictr/pkg/storage"
	"github.com/predictr-labs/predictr/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	// ---- Storage ----
	store, err := storage.Open(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("storage_open_failed", "path", cfg.Node.DBPath, "err", err)
	}
	defer store.Close()

	// ---- Engine ----
	eng := engine.New(engine.Options{
		Store:  store,
		Clock:  util.RealClock{},
		Logger: sugar,
	})
	if err := restoreState(eng, store); err != nil {
		sugar.Fatalw("state_restore_failed", "err", err)
	}
	if eng.Config() == nil {
		if cfg.Genesis.AdminKey == "" {
			sugar.Warnw("config_uninitialized", "hint", "set GENESIS_ADMIN_KEY to auto-initialize")
		} else if err := initializeGenesisConfig(eng, cfg.Genesis); err != nil {
			sugar.Fatalw("genesis_init_failed", "err", err)
		} else {
			sugar.Infow("genesis_config_initialized", "admin_key_source", "GENESIS_ADMIN_KEY")
		}
	}
	sugar.Infow("engine_ready", "markets", len(eng.ListMarkets()))

	// ---- API ----
	server := api.NewServer(eng, store)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Node.APIAddr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		sugar.Infow("shutdown", "signal", s.String())
	case err := <-errCh:
		sugar.Errorw("api_server_exited", "err", err)
	}
}

// initializeGenesisConfig bootstraps a fresh chain from the genesis
// params: a deposit funding the admin wallet with the config account's
// rent buffer, then initialize_global_config with the genesis
// authorities and the documented default fees. Both run as ordinary
// signed instructions, so the bootstrap leaves the same audit trail a
// client would.
func initializeGenesisConfig(eng *engine.Engine, gen params.Genesis) error {
	admin, err := crypto.FromPrivateKeyHex(gen.AdminKey)
	if err != nil {
		return fmt.Errorf("genesis admin key: %w", err)
	}
	if !common.IsHexAddress(gen.BackendAuthority) || !common.IsHexAddress(gen.ProtocolFeeWallet) {
		return fmt.Errorf("genesis requires backend authority and protocol fee wallet addresses")
	}

	apply := func(d transaction.Discriminator, payload any) error {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		si := &transaction.SignedInstruction{
			Discriminator: d,
			Payload:       raw,
			Nonce:         eng.Ledger().Nonce(admin.Address()) + 1,
		}
		if err := transaction.Sign(si, admin); err != nil {
			return err
		}
		_, err = eng.ApplyInstruction(si)
		return err
	}

	rent := ledger.RentFloor(core.GlobalConfigSize)
	if eng.Ledger().Balance(admin.Address()) < rent {
		if err := apply(transaction.Deposit, transaction.DepositPayload{Amount: rent}); err != nil {
			return fmt.Errorf("funding admin wallet: %w", err)
		}
	}
	return apply(transaction.InitializeGlobalConfig, transaction.InitializeGlobalConfigPayload{
		BackendAuthority:  gen.BackendAuthority,
		ProtocolFeeWallet: gen.ProtocolFeeWallet,
		ProtocolFeeBps:    core.DefaultProtocolFeeBps,
		ResolverRewardBps: core.DefaultResolverRewardBps,
		LPFeeBps:          core.DefaultLiquidityProviderFeeBps,
	})
}

// restoreState loads all persisted accounts into the engine.
func restoreState(eng *engine.Engine, store *storage.Store) error {
	if cfg, err := store.LoadConfig(); err != nil {
		return err
	} else if cfg != nil {
		eng.RestoreConfig(cfg)
	}

	markets, err := store.LoadMarkets()
	if err != nil {
		return err
	}
	for addr, m := range markets {
		eng.RestoreMarket(addr, m)
	}

	positions, err := store.LoadPositions()
	if err != nil {
		return err
	}
	for addr, p := range positions {
		eng.RestorePosition(addr, p)
	}

	votes, err := store.LoadVotes()
	if err != nil {
		return err
	}
	for addr, v := range votes {
		eng.RestoreVote(addr, v)
	}

	accounts, err := store.LoadLedgerAccounts()
	if err != nil {
		return err
	}
	for _, acc := range accounts {
		eng.RestoreLedgerAccount(acc)
	}
	return nil
}
