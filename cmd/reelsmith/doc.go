// Command reelsmith is the CLI for the script-to-video pipeline: it runs the
// processing daemon, submits scripts, and inspects or manages jobs.
package main
