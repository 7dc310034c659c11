package main

import (
	"cswatch-backend/cmd/cswatch-cli/commands"
	"cswatch-backend/lib/serviceutil"
	"cswatch-backend/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()
	telemetry.SetupFromEnv(ctx, "cswatch-cli")
	telemetry.InitSlog(true)
	telemetry.InstrumentPerfStats(ctx)
	commands.ExecuteContext(ctx)
}
