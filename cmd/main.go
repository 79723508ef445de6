// Package main is the erp-gateway binary.
//
// Usage:
//
//	erp-gateway [serve] [-c config.yaml] [-p port] [-d]
//	erp-gateway check-config [-c config.yaml]
//	erp-gateway version
package main

import (
	"fmt"
	"os"
)

// Version is set at build time via ldflags
var Version = "v0.1.0"

func main() {
	args := os.Args[1:]

	cmd := "serve"
	if len(args) > 0 && !isFlag(args[0]) {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		os.Exit(runServeCommand(args))
	case "check-config":
		os.Exit(runCheckConfigCommand(args))
	case "version", "-v", "--version":
		fmt.Printf("erp-gateway %s\n", Version)
	case "help", "-h", "--help":
		printUsage()
	default:
		printError(fmt.Sprintf("unknown command %q", cmd))
		printUsage()
		os.Exit(1)
	}
}

func isFlag(arg string) bool {
	return len(arg) > 0 && arg[0] == '-' && arg != "-h" && arg != "--help" && arg != "-v" && arg != "--version"
}

func printUsage() {
	fmt.Println("Legacy ERP Gateway")
	fmt.Println()
	fmt.Println("Usage: erp-gateway [COMMAND] [OPTIONS]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve          Run the gateway (default)")
	fmt.Println("  check-config   Load and validate the configuration")
	fmt.Println("  version        Print the version")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -c, --config FILE   YAML configuration file")
	fmt.Println("  -p, --port PORT     Listen port (overrides config)")
	fmt.Println("  -d, --debug         Debug logging")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  ETENDO_CLASSIC_URL    Legacy server base URL used for outbound calls")
	fmt.Println("  ETENDO_CLASSIC_HOST   Browser-reachable legacy base URL for HTML rewriting")
	fmt.Println("  ERP_GATEWAY_PORT      Listen port")
	fmt.Println("  REDIS_ADDRESS         Redis address for the shared cache backend")
}

// Print helper functions for consistent output formatting.
func printSuccess(msg string) {
	fmt.Printf("\033[0;32m[OK]\033[0m %s\n", msg)
}

func printInfo(msg string) {
	fmt.Printf("\033[0;34m[INFO]\033[0m %s\n", msg)
}

func printError(msg string) {
	fmt.Fprintf(os.Stderr, "\033[0;31m[ERROR]\033[0m %s\n", msg)
}
