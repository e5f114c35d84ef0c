// Package main is the entry point for DataGate.
package main

func main() {
	Execute()
}
