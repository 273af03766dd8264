package main

import (
	"os"

	"horse.fit/finscoop/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
