package main

import (
	"log"
	"os"

	"github.com/trezcool/learnlog/core"
	"github.com/trezcool/learnlog/services/apiclient"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// start CLI
	cli := commandLine{
		backend: apiclient.New(conf.Backend.BaseURL, conf.Backend.Timeout),
		out:     os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", apiclient.Message(err))
			logger.Printf("cause: %v\n", err)
		}
		os.Exit(1)
	}
}
