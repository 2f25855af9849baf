package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/wolfman30/gmx-sms-connector/cmd/gmxsms/commands"
)

func main() {
	_ = godotenv.Load()
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
