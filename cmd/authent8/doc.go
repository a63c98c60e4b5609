// Package authent8 provides the command-line interface for the Authent8
// scanner. It configures subcommands (scan, fp, doctor, etc.), parses flags,
// and executes the selected command.
//
// Typical usage from a main package:
//
//	package main
//	import "github.com/authent8/authent8/cmd/authent8"
//	func main() { authent8.Execute() }
package authent8
