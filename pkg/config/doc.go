// Package config loads hostsync configuration.
//
// Values are layered, later sources winning: built-in defaults, the YAML config
// file ($XDG_CONFIG_HOME/hostsync/config.yaml unless a path is given), then
// HOSTSYNC_* environment variables. In variable names a double underscore
// separates sections, so HOSTSYNC_EXECUTE__MAX_PARALLEL=4 sets
// execute.max_parallel.
package config
