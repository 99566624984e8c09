package main

// Populated via -ldflags at release build time.
var version = "dev"
