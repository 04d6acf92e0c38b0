package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"hq-entitlements/internal/config"
	"hq-entitlements/internal/service"
	"hq-entitlements/internal/store"
)

// commandContext opens the configured store once per invocation and
// shares one entitlement service across the command that runs.
type commandContext struct {
	storeFlag *string
	jsonFlag  *bool

	once    sync.Once
	svc     service.EntitlementService
	st      store.Store
	openErr error
}

func newCommandContext(storeFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		storeFlag: storeFlag,
		jsonFlag:  jsonFlag,
	}
}

func (c *commandContext) entitlements(ctx context.Context) (service.EntitlementService, error) {
	c.once.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.openErr = fmt.Errorf("failed to load configuration: %w", err)
			return
		}
		if c.storeFlag != nil && strings.TrimSpace(*c.storeFlag) != "" {
			cfg.Store.Backend = store.BackendFile
			cfg.Store.FilePath = strings.TrimSpace(*c.storeFlag)
		}

		logger := config.NewLoggerTo(cfg.Logger, os.Stderr).
			With().Str("cmd", "entctl").Logger()

		st, err := store.Open(ctx, cfg, logger)
		if err != nil {
			c.openErr = fmt.Errorf("failed to open order store: %w", err)
			return
		}
		c.st = st
		c.svc = service.NewEntitlementService(
			st,
			store.OpenEventLog(cfg),
			service.Options{DownloadBasePath: cfg.Download.BasePath},
			logger,
		)
	})
	return c.svc, c.openErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// checkPersisted turns a degraded write into a command failure. The server
// keeps going from memory, but a CLI process exits right after and would
// lose the change silently.
func (c *commandContext) checkPersisted() error {
	if c.svc == nil {
		return nil
	}
	status := c.svc.PersistenceStatus()
	if status.Degraded {
		return fmt.Errorf("change was not persisted to %s store: %s", status.Backend, status.LastError)
	}
	return nil
}

func (c *commandContext) close() error {
	if c.st == nil {
		return nil
	}
	return c.st.Close()
}
