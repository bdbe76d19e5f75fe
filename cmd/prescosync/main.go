package main

import (
	"prescosync/cmd/prescosync/commands"
	"prescosync/lib/serviceutil"

	"github.com/joho/godotenv"
)

func main() {
	// secrets come from the environment, a .env is a convenience for
	// local runs and absence is fine
	godotenv.Load()

	commands.ExecuteContext(serviceutil.SignalContext())
}
