package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "edubot",
	Short: "EduBot serves primary school maths over USSD",
	Long: `EduBot is a menu-driven USSD service for primary school maths.
Learners on any phone dial a service code, browse lessons and take
quizzes, and receive the full content by SMS.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
