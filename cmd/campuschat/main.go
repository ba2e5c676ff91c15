package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ltakahashi/campuschat/internal/app"
	"go.uber.org/fx"
)

func main() {
	groupFlag := flag.String("group", "", "message group id to join")
	configFlag := flag.String("config", "", "config file path (overrides default)")
	flag.Parse()

	group := strings.TrimSpace(*groupFlag)
	if group == "" && flag.NArg() > 0 {
		group = strings.TrimSpace(flag.Arg(0))
	}
	if group == "" {
		fmt.Fprintln(os.Stderr, "error: a group id is required (-group)")
		os.Exit(1)
	}

	fx.New(
		app.Module(app.Params{
			ConversationID: group,
			ConfigPath:     *configFlag,
		}),
		fx.NopLogger,
	).Run()
}
