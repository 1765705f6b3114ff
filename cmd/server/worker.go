package main

import (
	"errors"

	"github.com/mindfulchat/mindful-chat/internal/outreach"
	"github.com/mindfulchat/mindful-chat/internal/worker"
	"github.com/spf13/cobra"
)

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the outreach worker and scheduler against Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()
			if a.cfg.RedisURL == "" {
				return errors.New("REDIS_URL is required for the standalone worker")
			}

			mail, err := a.mailer()
			if err != nil {
				return err
			}
			_, llm := a.completer()
			svc := outreach.NewService(a.db, llm, mail, a.log)
			client, err := worker.NewClient(a.cfg.RedisURL)
			if err != nil {
				return err
			}
			defer client.Close()

			stopScheduler, err := worker.StartScheduler(a.cfg, a.log)
			if err != nil {
				return err
			}
			defer stopScheduler()

			a.log.Info("Starting worker")
			return worker.Run(a.cfg, worker.NewJobs(svc, a.log), client, a.log)
		},
	}
}
