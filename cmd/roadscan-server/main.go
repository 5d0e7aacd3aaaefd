// @title Roadscan API
// @version 1.0
// @description Road quality demo backend: image upload, damage estimation and record lookup.
// @BasePath /
package main

//go:generate swag init --parseInternal --outputTypes go -g main.go -d ./,../../internal -o ../../internal/transport/http/docs

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"roadscan-server-go/internal/bootstrap"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default: .config.yaml or config.yaml)")
	noDotEnv := flag.Bool("no-dotenv", false, "skip loading .env")
	flag.Parse()

	fmt.Printf("[%s] [INFO] [Bootstrap] starting roadscan-server...\n", time.Now().Format("2006-01-02 15:04:05.000"))
	if err := bootstrap.Run(context.Background(), bootstrap.Options{
		ConfigPath: *configPath,
		NoDotEnv:   *noDotEnv,
	}); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "roadscan-server failed: %v\n", err)
		os.Exit(1)
	}
}
