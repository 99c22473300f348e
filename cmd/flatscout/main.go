// Package main provides the entry point for the flatscout CLI.
//
// flatscout searches German property listing sites for listings located at
// the addresses in your address book and archives every search as a report.
//
// Usage:
//
//	flatscout address add --street Hauptstraße --number 12 --city Berlin
//	flatscout search
//	flatscout reports list
//	flatscout serve
//
// See --help for all available options.
package main

// main is the entry point for flatscout.
func main() {
	Execute()
}
