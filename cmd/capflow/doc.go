// Package main hosts the capflow CLI entrypoint and command graph.
//
// replay drains a recorded capture through the correlation engine, serve runs
// the live ingest server until interrupted, and the catalog commands print
// runs archived by either one. Configuration resolution and logger setup live
// in the command context so subcommands only deal with their own flags.
package main
