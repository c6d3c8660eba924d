package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/golang/glog"

	"github.com/robotalks/mcu.go/pkg/app/echod"
	"github.com/robotalks/mcu.go/pkg/env"
	fx "github.com/robotalks/mcu.go/pkg/framework"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	d, err := echod.New(env.NewConfig())
	if err != nil {
		glog.Exitf("board init: %v", err)
	}
	if err := fx.NewRunner().HandleSignals().Go(d).Wait(); err != nil {
		glog.Exit(err)
	}
}
