package main

import (
	"os"

	"github.com/jamestiotio/embree/cmd"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "embree"
	app.Usage = "build spatial acceleration structures for ray tracing"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "build",
			Usage: "build a BVH over a synthetic instanced scene",
			Description: `
Generate a reproducible synthetic scene of clustered primitives, group it
into per-geometry cluster trees and build a BVH with the open-merge SAH
heuristic, opening composite references where that tightens bounds. Build
statistics are printed when done.`,
			Action: cmd.BuildTree,
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "prims",
					Value: 100000,
					Usage: "number of primitives to generate",
				},
				cli.IntFlag{
					Name:  "clusters",
					Value: 64,
					Usage: "number of instanced clusters",
				},
				cli.Int64Flag{
					Name:  "seed",
					Value: 1,
					Usage: "scene generator seed",
				},
				cli.IntFlag{
					Name:  "fanout",
					Value: 8,
					Usage: "cluster tree fanout (2-8)",
				},
				cli.StringFlag{
					Name:  "strategy",
					Value: "extent",
					Usage: "node opening strategy: extent, until-full or extent-loop",
				},
				cli.IntFlag{
					Name:  "max-leaf",
					Value: 4,
					Usage: "max primitives per leaf",
				},
				cli.Float64Flag{
					Name:  "ext-factor",
					Value: 1.0,
					Usage: "extension window size as a fraction of the primitive count",
				},
			},
		},
	}

	app.Run(os.Args)
}
