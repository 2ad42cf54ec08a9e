// Copyright 2018-2019 The logrange Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jrivets/log4g"
	"github.com/logrange/snmpwalk/client"
	"github.com/logrange/snmpwalk/cmd"
	"github.com/logrange/snmpwalk/pkg/engine"
	"github.com/logrange/snmpwalk/server"
	ucli "gopkg.in/urfave/cli.v2"
)

const (
	Version = "0.1.0"
)

const (
	argCfgFile       = "config-file"
	argLogCfgFile    = "log-config-file"
	argStartAsDaemon = "daemon"
	argPidFile       = "pid-file"

	argAgentListenAddr  = "listen-addr"
	argAgentDataFile    = "data-file"
	argAgentMaxBindings = "max-bindings"

	argTarget         = "target"
	argEngine         = "engine"
	argRetries        = "retries"
	argTimeoutMs      = "timeout-ms"
	argMaxRepetitions = "max-repetitions"
	argAllowTruncated = "allow-truncated"
	argNonRepeaters   = "non-repeaters"
	argEach           = "each"
	argCallTimeout    = "call-timeout"
)

var (
	logger = log4g.GetLogger("snmpwalk")
)

// main is the entry point of the snmpwalk command. It groups:
//		agent      - runs the agent daemon, which serves a data file over RPC
//		stop-agent - stops the agent daemon started with the pid file
//		get        - requests values of objects
//		set        - assigns value of an object
//		walk       - reads a table column by column
//		objects    - prints the objects known to the catalog
func main() {
	defer log4g.Shutdown()

	cmnFlags := []ucli.Flag{
		&ucli.StringFlag{
			Name:  argCfgFile,
			Usage: "configuration file path",
		},
		&ucli.StringFlag{
			Name:  argLogCfgFile,
			Usage: "log4g configuration file path",
		},
	}

	agentFlags := []ucli.Flag{
		&ucli.StringFlag{
			Name:  argAgentListenAddr,
			Usage: "the address the agent listens on, e.g. 127.0.0.1:10161",
		},
		&ucli.StringFlag{
			Name:  argAgentDataFile,
			Usage: "the agent data file, one binding per line in logfmt: oid=... type=... value=...",
		},
		&ucli.IntFlag{
			Name:  argAgentMaxBindings,
			Usage: "maximum number of bindings in one response, 0 means no limit",
		},
		&ucli.StringFlag{
			Name:  argPidFile,
			Value: "/tmp/snmpwalk-agent.pid",
			Usage: "the agent pid file",
		},
		&ucli.BoolFlag{
			Name:  argStartAsDaemon,
			Usage: "starting as a daemon (detached from the console).",
		},
	}
	agentFlags = append(agentFlags, cmnFlags...)

	clientFlags := []ucli.Flag{
		&ucli.StringFlag{
			Name:  argTarget,
			Usage: "the agent address, e.g. 127.0.0.1:10161",
		},
		&ucli.StringFlag{
			Name:  argEngine,
			Usage: "the engine type, one of \"remote\" or \"inmem\"",
		},
		&ucli.IntFlag{
			Name:  argRetries,
			Value: -1,
			Usage: "how many times a request is re-sent after a timeout",
		},
		&ucli.IntFlag{
			Name:  argTimeoutMs,
			Usage: "timeout of one attempt in milliseconds",
		},
		&ucli.IntFlag{
			Name:  argCallTimeout,
			Usage: "timeout of the whole command in seconds, 0 means no timeout",
		},
	}
	clientFlags = append(clientFlags, cmnFlags...)

	app := &ucli.App{
		Name:    "snmpwalk",
		Version: Version,
		Usage:   "Table walker and agent",
		Commands: []*ucli.Command{
			{
				Name:      "agent",
				Usage:     "Run the agent",
				UsageText: "snmpwalk agent [command options]",
				Action:    runAgent,
				Flags:     agentFlags,
			},
			{
				Name:      "stop-agent",
				Usage:     "Stop the agent",
				UsageText: "snmpwalk stop-agent [command options]",
				Action:    stopAgent,
				Flags:     []ucli.Flag{agentFlags[3]},
			},
			{
				Name:      "get",
				Usage:     "Get values of the objects",
				ArgsUsage: "<object> [<object> ...]",
				Action:    runGet,
				Flags: append([]ucli.Flag{
					&ucli.BoolFlag{
						Name:  argEach,
						Usage: "send a request per object, all at once",
					},
				}, clientFlags...),
			},
			{
				Name:      "set",
				Usage:     "Set value of the object",
				ArgsUsage: "<object> <type> <value>",
				Action:    runSet,
				Flags:     clientFlags,
			},
			{
				Name:      "walk",
				Usage:     "Walk the table",
				ArgsUsage: "<column> [<column> ...]",
				Action:    runWalk,
				Flags: append([]ucli.Flag{
					&ucli.StringSliceFlag{
						Name:  argNonRepeaters,
						Usage: "objects requested once per batch, e.g. \"sysUpTime\"",
					},
					&ucli.IntFlag{
						Name:  argMaxRepetitions,
						Usage: "number of rows requested in one batch",
					},
					&ucli.BoolFlag{
						Name:  argAllowTruncated,
						Usage: "continue with less columns when the agent returns truncated batches",
					},
				}, clientFlags...),
			},
			{
				Name:   "objects",
				Usage:  "Print the objects known to the catalog",
				Action: printObjects,
				Flags:  cmnFlags,
			},
		},
	}

	sort.Sort(ucli.FlagsByName(app.Flags))
	for _, c := range app.Commands {
		sort.Sort(ucli.FlagsByName(c.Flags))
	}
	sort.Sort(ucli.CommandsByName(app.Commands))

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func configLog(c *ucli.Context) error {
	if logCfgFile := c.String(argLogCfgFile); logCfgFile != "" {
		return log4g.ConfigF(logCfgFile)
	}
	return nil
}

func newCtx() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cmd.NewNotifierOnIntTermSignal(func(s os.Signal) {
		logger.Warn("Handling signal=", s)
		cancel()
	})
	return ctx
}

//===================== agent =====================

func runAgent(c *ucli.Context) error {
	if err := configLog(c); err != nil {
		return err
	}

	if c.Args().Len() > 0 {
		return fmt.Errorf("no arguments expected, but %s", c.Args())
	}

	if c.Bool(argStartAsDaemon) {
		res := cmd.RemoveArgsWithName(os.Args[1:], argStartAsDaemon)
		return cmd.RunCommand(os.Args[0], res...)
	}

	cfg := server.GetDefaultConfig()
	cfg.Apply(server.ReadConfigFromFile(c.String(argCfgFile)))
	if la := c.String(argAgentListenAddr); la != "" {
		cfg.Transport.ListenAddr = la
	}
	if df := c.String(argAgentDataFile); df != "" {
		cfg.DataFile = df
	}
	if mb := c.Int(argAgentMaxBindings); mb > 0 {
		cfg.MaxResponseBindings = mb
	}

	pf := cmd.NewPidFile(c.String(argPidFile))
	if !pf.Lock() {
		return fmt.Errorf("already running, see %s", c.String(argPidFile))
	}
	defer pf.Unlock()

	return server.Start(newCtx(), cfg)
}

func stopAgent(c *ucli.Context) error {
	if c.Args().Len() > 0 {
		return fmt.Errorf("no arguments expected, but %s", c.Args())
	}
	return cmd.NewPidFile(c.String(argPidFile)).Interrupt()
}

//===================== client =====================

func initCfg(c *ucli.Context) (*client.Config, error) {
	if err := configLog(c); err != nil {
		return nil, err
	}

	cfg := client.NewDefaultConfig()
	if cfgFile := c.String(argCfgFile); cfgFile != "" {
		logger.Info("Loading config from=", cfgFile)
		config, err := client.LoadCfgFromFile(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg.Apply(config)
	}

	applyArgsToCfg(c, cfg)
	return cfg, nil
}

func applyArgsToCfg(c *ucli.Context, cfg *client.Config) {
	if t := c.String(argTarget); t != "" {
		cfg.Target.Address = t
	}
	if e := c.String(argEngine); e != "" {
		cfg.Engine = &engine.Config{Type: e}
	}
	if r := c.Int(argRetries); r >= 0 {
		cfg.Session.Retries = &r
	}
	if to := c.Int(argTimeoutMs); to > 0 {
		cfg.Session.TimeoutMs = to
	}
	if mr := c.Int(argMaxRepetitions); mr > 0 {
		cfg.Session.MaxRepetitions = mr
	}
	if c.Bool(argAllowTruncated) {
		at := true
		cfg.Session.AllowTruncated = &at
	}
}

func newClient(c *ucli.Context) (*client.Client, context.Context, context.CancelFunc, error) {
	cfg, err := initCfg(c)
	if err != nil {
		return nil, nil, nil, err
	}

	cli, err := client.New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	var (
		ctx    = newCtx()
		cancel context.CancelFunc
	)
	if ct := c.Int(argCallTimeout); ct > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(ct)*time.Second)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	return cli, ctx, cancel, nil
}

func runGet(c *ucli.Context) error {
	if c.Args().Len() == 0 {
		return fmt.Errorf("at least one object expected")
	}

	cli, ctx, cancel, err := newClient(c)
	if err != nil {
		return err
	}
	defer cli.Close()
	defer cancel()

	get := cli.Get
	if c.Bool(argEach) {
		get = cli.GetEach
	}
	vbs, err := get(ctx, c.Args().Slice()...)
	if err != nil {
		return err
	}
	for _, vb := range vbs {
		fmt.Println(cli.Format(vb))
	}
	return nil
}

func runSet(c *ucli.Context) error {
	if c.Args().Len() != 3 {
		return fmt.Errorf("expecting <object> <type> <value>, but %s", c.Args())
	}

	cli, ctx, cancel, err := newClient(c)
	if err != nil {
		return err
	}
	defer cli.Close()
	defer cancel()

	vbs, err := cli.Set(ctx, c.Args().Get(0), c.Args().Get(1), c.Args().Get(2))
	if err != nil {
		return err
	}
	for _, vb := range vbs {
		fmt.Println(cli.Format(vb))
	}
	return nil
}

func runWalk(c *ucli.Context) error {
	if c.Args().Len() == 0 {
		return fmt.Errorf("at least one column expected")
	}

	cli, ctx, cancel, err := newClient(c)
	if err != nil {
		return err
	}
	defer cli.Close()
	defer cancel()

	start := time.Now()
	rows, err := cli.Walk(ctx, c.StringSlice(argNonRepeaters), c.Args().Slice())
	for _, r := range rows {
		vals := make([]string, 0, len(r.NonRepeaters)+len(r.Columns))
		for _, vb := range r.NonRepeaters {
			vals = append(vals, cli.Format(vb))
		}
		for _, vb := range r.Columns {
			vals = append(vals, cli.Format(vb))
		}
		fmt.Printf("[%s] %s\n", r.Index(), strings.Join(vals, ", "))
	}
	if err != nil {
		return err
	}
	fmt.Printf("\n%d row(s) in %s\n", len(rows), time.Since(start))
	return nil
}

func printObjects(c *ucli.Context) error {
	cfg, err := initCfg(c)
	if err != nil {
		return err
	}

	cli, err := client.New(cfg)
	if err != nil {
		return err
	}
	defer cli.Close()

	for _, o := range cli.Catalog.Objects() {
		fmt.Printf("%-20s %-28s %s\n", o.Name, o.Oid, o.Syntax)
	}
	return nil
}
