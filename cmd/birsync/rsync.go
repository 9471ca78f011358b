// Tool birsync is an rsync-compatible file synchronization tool.
package main

import (
	"context"
	"log"
	"os"

	"github.com/birsync/rsync/internal/maincmd"
	"github.com/birsync/rsync/internal/rsyncerr"
)

func main() {
	if _, err := maincmd.Main(context.Background(), os.Args, os.Stdin, os.Stdout, os.Stderr); err != nil {
		log.Print(err)
		os.Exit(rsyncerr.Code(err))
	}
}
