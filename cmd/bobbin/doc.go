// Command bobbin is the CLI for the bobbin daemon. It submits content items,
// inspects the queue and collections, requests snapshots, and tunes runtime
// settings over the daemon's HTTP API.
package main
