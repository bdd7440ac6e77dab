package main

import "os"

func main() {
	if err := newRootCmd(openComponents).Execute(); err != nil {
		os.Exit(1)
	}
}
