package main

import (
	"context"

	"github.com/web3-frozen/dedust-pool-monitor/cmd/collector/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
