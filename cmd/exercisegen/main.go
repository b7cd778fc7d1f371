// Command exercisegen pre-generates the exercise bank so that sessions do
// not spend tokens on generation.
package main

import (
	"context"
	"log"
	"os"
)

func main() {
	if err := newRootCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
