// Package config loads the gateway's YAML configuration and persists its
// runtime state across restarts.
//
// The YAML file carries everything operators set: device identity, report
// topics and their aliases, the two link profiles, acquisition periods,
// and the journal and status listener paths. The state file is separate:
// a small version-stamped JSON snapshot the gateway writes itself, so a
// generated device ID and the last selected mode survive a power cycle.
package config
