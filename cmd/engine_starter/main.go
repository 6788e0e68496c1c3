package main

import (
	"context"
	"fmt"
	"os"

	starter "github.com/lestrrat-go/engine-starter"
)

func main() {
	os.Exit(_main())
}

func _main() int {
	cli := starter.NewCLI()
	if err := cli.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		return 1
	}
	return 0
}
