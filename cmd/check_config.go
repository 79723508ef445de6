package main

import (
	"fmt"
	"time"
)

// runCheckConfigCommand loads and validates the configuration and prints
// the effective legacy endpoints.
func runCheckConfigCommand(args []string) int {
	opts, err := parseOptions(args)
	if err != nil {
		printError(err.Error())
		return 1
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		printError(fmt.Sprintf("invalid configuration: %v", err))
		return 1
	}

	printSuccess("configuration is valid")
	printInfo(fmt.Sprintf("listen port:    %d", cfg.Server.Port))
	printInfo(fmt.Sprintf("legacy api:     %s", cfg.Legacy.APIBase()))
	printInfo(fmt.Sprintf("browser base:   %s", cfg.Legacy.BrowserBase()))
	printInfo(fmt.Sprintf("sessions:       %s (ttl %s)", cfg.Session.Backend, sessionTTL(cfg.Session.TTL)))
	if cfg.Cache.Enabled && cfg.Cache.TTL > 0 {
		printInfo(fmt.Sprintf("cache:          %s (ttl %s)", cfg.Cache.Backend, cfg.Cache.TTL))
	} else {
		printInfo("cache:          disabled")
	}
	return 0
}

func sessionTTL(d time.Duration) string {
	if d <= 0 {
		return "never expires"
	}
	return d.String()
}
