package main

import (
	"context"
	"log"

	"github.com/vldos/telegram-survey-bot/core/cmd"
	"github.com/vldos/telegram-survey-bot/survey/app"
)

func main() {
	err := cmd.Run(cmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return app.Load(path)
		},
		Bootstrap: func(cfg cmd.ConfigCarrier) (cmd.TelegramApp, error) {
			return app.Bootstrap(context.Background(), cfg.(*app.Config), app.Options{})
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
