package main

import (
	"fmt"
	"strconv"
)

// cliOptions are the flags shared by serve and check-config.
type cliOptions struct {
	configPath string
	port       int
	debug      bool
}

// parseOptions parses -c/--config, -p/--port and -d/--debug.
func parseOptions(args []string) (cliOptions, error) {
	var opts cliOptions
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-c", "--config":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("%s requires a value", args[i])
			}
			i++
			opts.configPath = args[i]
		case "-p", "--port":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("%s requires a value", args[i])
			}
			i++
			port, err := strconv.Atoi(args[i])
			if err != nil || port <= 0 || port > 65535 {
				return opts, fmt.Errorf("invalid port %q", args[i])
			}
			opts.port = port
		case "-d", "--debug":
			opts.debug = true
		default:
			return opts, fmt.Errorf("unknown option %q", args[i])
		}
	}
	return opts, nil
}
