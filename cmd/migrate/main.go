package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/arawak/tagsmith/migrations"
)

var version = "dev"

func main() {
	fmt.Printf("tagsmith-migrate version %s\n", version)

	_ = godotenv.Load()
	dsn := os.Getenv("TAGSMITH_DB_DSN")
	if dsn == "" {
		fmt.Println("TAGSMITH_DB_DSN is required")
		os.Exit(1)
	}
	dir := flag.String("dir", "up", "migration direction: up, down or version")
	flag.Parse()

	var err error
	switch *dir {
	case "up":
		err = migrations.Up(dsn)
	case "down":
		err = migrations.Down(dsn)
	case "version":
		var v uint
		var dirty bool
		v, dirty, err = migrations.Version(dsn)
		if err == nil {
			fmt.Printf("schema version %d (dirty=%t)\n", v, dirty)
		}
	default:
		err = fmt.Errorf("unknown direction: %s", *dir)
	}
	if err != nil {
		fmt.Println("migration error:", err)
		os.Exit(1)
	}
}
