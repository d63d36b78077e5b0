/*Command migcap captures a timestamped image dataset from a machine vision
camera.

Each run writes frame_<n>.png to ../images/Gain_<g>_Exposure_<e>/ and the
device timestamp of frame n to row n+1 of ../timestamps/Gain_<g>_Exposure_<e>.xlsx,
until Enter is pressed in the frame window or the process is interrupted.

Usage:

	migcap [--config migcap.yml] <command>

Commands:

	run      capture until Enter or Ctrl-C
	mkconf   write the default config to the config file
	conf     print the resolved config
	devices  list cameras seen by the SDK and on the USB bus
	version  print the version
*/
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	yml "gopkg.in/yaml.v2"
)

// Version is the version number.  Typically injected via ldflags with git build
var Version = "1"

var app = cli.NewApp()

func init() {
	app.Name = "migcap"
	app.Usage = "capture a timestamped image dataset from a Vimba camera"
	app.UsageText = "migcap [--config file] command"
	app.HideVersion = true
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: ConfigFileName,
			Usage: "config file, missing is not an error"},
	}
	app.Commands = []cli.Command{
		{
			Name:  "run",
			Usage: "capture frames until Enter or Ctrl-C",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "sim", Usage: "use the simulated camera"},
				cli.BoolFlag{Name: "headless", Usage: "no frame window, show a frame counter"},
			},
			Action: run,
		},
		{
			Name:   "mkconf",
			Usage:  "write the default config to the config file",
			Action: mkconf,
		},
		{
			Name:   "conf",
			Usage:  "print the resolved config",
			Action: printconf,
		},
		{
			Name:  "devices",
			Usage: "list cameras seen by the SDK and USB3 Vision devices on the bus",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "sim", Usage: "use the simulated camera"},
			},
			Action: devices,
		},
		{
			Name:  "version",
			Usage: "print the version",
			Action: func(c *cli.Context) error {
				fmt.Printf("migcap version %v\n", Version)
				return nil
			},
		},
	}
}

func mkconf(c *cli.Context) error {
	fn := c.GlobalString("config")
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer f.Close()
	return yml.NewEncoder(f).Encode(defaults())
}

func printconf(c *cli.Context) error {
	cfg, err := loadConfig(c.GlobalString("config"))
	if err != nil {
		return err
	}
	return yml.NewEncoder(os.Stdout).Encode(cfg)
}

func main() {
	err := app.Run(os.Args)
	if err != nil {
		logrus.Fatal(err)
	}
}
