package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/VScristianlazar/zendesk-api-integration/internal/app"
)

func main() {
	// .envがあれば読み込む。なくてもエラーにしない（本番は環境変数で設定する）。
	_ = godotenv.Load()

	if err := app.Run(os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
