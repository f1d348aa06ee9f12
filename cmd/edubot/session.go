package main

import (
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	redisadapter "github.com/sediba/edubot/internal/adapters/redis"
	"github.com/sediba/edubot/internal/config"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect live dialog sessions",
	Long:  `List, inspect, and remove dialog sessions in Redis. Useful when a learner reports a stuck dialog.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all live sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := sessionStore()
		if err != nil {
			return err
		}
		defer cleanup()

		ids, err := store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(ids) == 0 {
			fmt.Println("No live sessions.")
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print the state of a session as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := sessionStore()
		if err != nil {
			return err
		}
		defer cleanup()

		sess, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("load session %q: %w", args[0], err)
		}

		data, err := json.MarshalIndent(sess, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := sessionStore()
		if err != nil {
			return err
		}
		defer cleanup()

		failed := 0
		for _, id := range args {
			if err := store.Delete(cmd.Context(), id); err != nil {
				fmt.Printf("remove %q: %v\n", id, err)
				failed++
				continue
			}
			fmt.Printf("removed %s\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("failed to remove %d session(s)", failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
}

func sessionStore() (*redisadapter.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	store := redisadapter.NewFromClient(rdb, redisadapter.WithTTL(cfg.SessionTTL))
	return store, func() { _ = rdb.Close() }, nil
}
