// perkportal はDiscordサーバーのブースター特典ポータルのAPIサーバー兼ワーカー。
//
// 使い方:
//
//	perkportal [serve|worker|cleanup|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/fishcafe/perkportal/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "perkportal: %v\n", err)
		os.Exit(1)
	}
}
