// Package logs reads the daemon log file for the CLI.
//
// The daemon appends structured lines to reelsmith.log; this package serves
// the "logs" command's two modes: show the last N lines, and follow the file
// for new lines. Following works by polling from a byte offset, which holds
// up across log truncation and the daemon restarting.
package logs
