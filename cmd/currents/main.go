package main

import (
	"os"

	"horse.fit/currents/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
