package main

// Exported for testing.
var (
	NewApp       = newApp
	ParseGSURI   = parseGSURI
	LoadConfig   = loadProfile
	ExportTraces = exportTraces
)
