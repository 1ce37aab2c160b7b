// Package main is the entry point for the courtmetrics CLI tool, which maps a
// squash court from video pose data and computes player movement metrics.
package main

import "github.com/pable/go-court-metrics/cmd"

func main() {
	cmd.Execute()
}
